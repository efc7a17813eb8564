package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/glimte/svcbus-go/schema"
	"github.com/glimte/svcbus-go/serialization"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type...]",
		Short: "Print the JSON schemas of the demo message types",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := serialization.NewTypeRegistry()
			if err := registry.Register(demoTypes()...); err != nil {
				return err
			}

			schemas, err := schema.NewGenerator().GenerateAll(registry, "")
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				for name := range schemas {
					names = append(names, name)
				}
				sort.Strings(names)
			}

			selected := make(map[string]json.RawMessage, len(names))
			for _, name := range names {
				doc, ok := schemas[name]
				if !ok {
					return fmt.Errorf("unknown message type %q", name)
				}
				selected[name] = doc
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(selected)
		},
	}
}

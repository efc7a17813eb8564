package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/health"
	"github.com/glimte/svcbus-go/messaging"
)

func newDestinationsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "Print the destinations derived for a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, role := range contracts.Roles() {
				dest, err := destination(flags, role.String())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", role, dest)
			}
			return nil
		},
	}
}

func newPublishCmd(flags *globalFlags) *cobra.Command {
	var (
		typeName   string
		properties []string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish <role> [json]",
		Short: "Publish a raw JSON message to a role's destination",
		Long:  "Publishes the JSON body from the argument, or from stdin when omitted, with the given TypeName.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := destination(flags, args[0])
			if err != nil {
				return err
			}

			body, err := readBody(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !json.Valid([]byte(body)) {
				return fmt.Errorf("message body is not valid JSON")
			}

			factory, err := connectionFactory(flags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := publishRaw(ctx, factory, dest, body, typeName, properties); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", typeName, dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "TypeName property of the message")
	cmd.Flags().StringSliceVarP(&properties, "property", "p", nil, "Extra properties as name=value")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Publish timeout")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func readBody(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func publishRaw(ctx context.Context, factory messaging.ConnectionFactory, dest messaging.Destination, body, typeName string, properties []string) error {
	conn, err := factory.CreateConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := conn.CreateSession(messaging.AutoAcknowledge)
	if err != nil {
		return err
	}
	producer, err := session.CreateProducer(dest)
	if err != nil {
		return err
	}
	defer producer.Close()

	wire := session.CreateTextMessage(body)
	for _, p := range properties {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return fmt.Errorf("property %q is not name=value", p)
		}
		wire.Properties().SetString(name, value)
	}
	wire.Properties().SetString(messaging.PropertyTypeName, typeName)
	return producer.Send(ctx, wire)
}

func newTailCmd(flags *globalFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "tail <role>",
		Short: "Print messages arriving on a role's destination",
		Long:  "Consumes from the destination until interrupted. Tailing a queue competes with the service's own consumers.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := destination(flags, args[0])
			if err != nil {
				return err
			}
			factory, err := connectionFactory(flags)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return tail(ctx, factory, dest, count, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after n messages (0 = unlimited)")
	return cmd
}

func tail(ctx context.Context, factory messaging.ConnectionFactory, dest messaging.Destination, count int, out io.Writer) error {
	conn, err := factory.CreateConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := conn.CreateSession(messaging.AutoAcknowledge)
	if err != nil {
		return err
	}
	consumer, err := session.CreateConsumer(dest)
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := conn.Start(); err != nil {
		return err
	}

	for seen := 0; count == 0 || seen < count; seen++ {
		wire, err := consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		printWire(out, wire)
	}
	return nil
}

func printWire(out io.Writer, wire messaging.WireMessage) {
	props := wire.Properties()
	typeName, _ := messaging.StringProperty(props, messaging.PropertyTypeName)

	fmt.Fprintf(out, "--- %s\n", typeName)
	for _, name := range props.Names() {
		if name == messaging.PropertyTypeName {
			continue
		}
		v, _ := props.Get(name)
		fmt.Fprintf(out, "  %s (%s) = %s\n", name, v.Kind(), v)
	}

	payload, ok := messaging.PayloadOf(wire)
	switch {
	case !ok:
		fmt.Fprintln(out, "  <unsupported message>")
	case payload.IsBinary():
		fmt.Fprintf(out, "  <%d bytes>\n", payload.Len())
	default:
		fmt.Fprintf(out, "  %s\n", payload.Text())
	}
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check broker connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			factory, err := connectionFactory(flags)
			if err != nil {
				return err
			}

			registry := health.NewRegistry()
			registry.Register(health.NewBrokerChecker(flags.broker, factory, nil))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			result := registry.Check(ctx)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			if result.Status == health.StatusUnhealthy {
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Check timeout")
	return cmd
}

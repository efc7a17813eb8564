// Package schema generates JSON Schema (draft-07) documents for registered
// message types, following the field names encoding/json would produce.
//
//	registry := serialization.NewTypeRegistry().MustRegister(&OrderPlaced{})
//	schemas, err := schema.NewGenerator().GenerateAll(registry, "")
package schema

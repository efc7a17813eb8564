package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// Generator generates JSON schemas from message types
type Generator struct {
	// types on the current path, to stop recursive structs
	seen map[reflect.Type]bool
}

// NewGenerator creates a new JSON schema generator
func NewGenerator() *Generator {
	return &Generator{seen: make(map[reflect.Type]bool)}
}

// Generate returns the schema of a registered message type. The document
// carries the wire type name as title and the message role as "x-role".
func (g *Generator) Generate(mt serialization.MessageType) (json.RawMessage, error) {
	t := mt.Type()
	if t == nil {
		return nil, fmt.Errorf("message type %q has no Go type", mt.Name)
	}
	g.seen = make(map[reflect.Type]bool)

	doc := g.generateSchema(t)
	doc["$schema"] = draft07
	doc["title"] = mt.Name
	if role, ok := roleOf(mt.New()); ok {
		doc["x-role"] = role.String()
	}
	return json.Marshal(doc)
}

// GenerateAll returns the schemas of every registered type whose package
// path contains pkgFilter, keyed by type name
func (g *Generator) GenerateAll(registry *serialization.TypeRegistry, pkgFilter string) (map[string]json.RawMessage, error) {
	schemas := make(map[string]json.RawMessage)
	for _, mt := range registry.Types(pkgFilter) {
		doc, err := g.Generate(mt)
		if err != nil {
			return nil, err
		}
		schemas[mt.Name] = doc
	}
	return schemas, nil
}

func roleOf(msg contracts.Message) (contracts.Role, bool) {
	for _, role := range contracts.Roles() {
		if role.Matches(msg) {
			return role, true
		}
	}
	return 0, false
}

func (g *Generator) generateSchema(t reflect.Type) map[string]interface{} {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]interface{}{"type": "integer"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer", "minimum": 0}

	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}

	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// encoding/json writes byte slices as base64
			return map[string]interface{}{"type": "string", "contentEncoding": "base64"}
		}
		return map[string]interface{}{
			"type":  "array",
			"items": g.generateSchema(t.Elem()),
		}

	case reflect.Map:
		return map[string]interface{}{
			"type":                 "object",
			"additionalProperties": g.generateSchema(t.Elem()),
		}

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return map[string]interface{}{"type": "string", "format": "date-time"}
		}
		if g.seen[t] {
			return map[string]interface{}{"type": "object"}
		}
		g.seen[t] = true
		defer delete(g.seen, t)

		properties := make(map[string]interface{})
		required := make([]string, 0)
		g.collectFields(t, properties, &required)

		schema := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema

	case reflect.Interface:
		return map[string]interface{}{}

	default:
		return map[string]interface{}{
			"description": fmt.Sprintf("unsupported kind %v", t.Kind()),
		}
	}
}

// collectFields adds the JSON fields of t, promoting the fields of
// untagged embedded structs the way encoding/json does
func (g *Generator) collectFields(t reflect.Type, properties map[string]interface{}, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name, omitempty := parseTag(jsonTag)

		if field.Anonymous && name == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				g.collectFields(ft, properties, required)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generateSchema(field.Type)
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		properties[name] = fieldSchema

		if !omitempty && field.Type.Kind() != reflect.Ptr {
			*required = append(*required, name)
		}
	}
}

func parseTag(tag string) (name string, omitempty bool) {
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return parts[0], omitempty
}

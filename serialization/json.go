package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/glimte/svcbus-go/contracts"
)

// JSONSerializer serializes messages as JSON text
type JSONSerializer struct {
	prettyPrint bool
}

// JSONSerializerOption configures the JSON serializer
type JSONSerializerOption func(*JSONSerializer)

// WithPrettyPrint enables pretty printing
func WithPrettyPrint(pretty bool) JSONSerializerOption {
	return func(s *JSONSerializer) {
		s.prettyPrint = pretty
	}
}

// NewJSONSerializer creates a new JSON serializer
func NewJSONSerializer(opts ...JSONSerializerOption) *JSONSerializer {
	s := &JSONSerializer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize implements Serializer
func (s *JSONSerializer) Serialize(msg any) (Payload, error) {
	if msg == nil {
		return Payload{}, fmt.Errorf("message cannot be nil")
	}

	var (
		data []byte
		err  error
	)
	if s.prettyPrint {
		data, err = json.MarshalIndent(msg, "", "  ")
	} else {
		data, err = json.Marshal(msg)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal %s: %w", contracts.TypeName(msg), err)
	}

	return TextPayload(string(data)), nil
}

// JSONDeserializer decodes JSON payloads into one message type
type JSONDeserializer struct {
	messageType MessageType
}

// NewJSONDeserializer creates a deserializer for a registered type
func NewJSONDeserializer(mt MessageType) *JSONDeserializer {
	return &JSONDeserializer{messageType: mt}
}

// TypeName implements Deserializer
func (d *JSONDeserializer) TypeName() string {
	return d.messageType.Name
}

// Deserialize implements Deserializer
func (d *JSONDeserializer) Deserialize(payload Payload) (contracts.Message, error) {
	if payload.Len() == 0 {
		return nil, fmt.Errorf("payload for %s is empty", d.messageType.Name)
	}

	msg := d.messageType.New()
	if err := json.Unmarshal(payload.Bytes(), msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into type %s: %w", d.messageType.Name, err)
	}
	return msg, nil
}

// JSONDeserializerFactory creates JSON deserializers
type JSONDeserializerFactory struct{}

// Create implements DeserializerFactory
func (JSONDeserializerFactory) Create(types []MessageType) []Deserializer {
	deserializers := make([]Deserializer, 0, len(types))
	for _, mt := range types {
		deserializers = append(deserializers, NewJSONDeserializer(mt))
	}
	return deserializers
}

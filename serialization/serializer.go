// Package serialization converts messages to and from their wire payloads.
package serialization

import (
	"github.com/glimte/svcbus-go/contracts"
)

// Payload is the serialized form of a message: either text or binary.
type Payload struct {
	text   string
	bytes  []byte
	binary bool
}

// TextPayload wraps a text payload
func TextPayload(text string) Payload {
	return Payload{text: text}
}

// BinaryPayload wraps a binary payload
func BinaryPayload(data []byte) Payload {
	return Payload{bytes: data, binary: true}
}

// IsBinary reports whether the payload should travel as a bytes message
func (p Payload) IsBinary() bool {
	return p.binary
}

// Text returns the payload as text
func (p Payload) Text() string {
	if p.binary {
		return string(p.bytes)
	}
	return p.text
}

// Bytes returns the payload as raw bytes
func (p Payload) Bytes() []byte {
	if p.binary {
		return p.bytes
	}
	return []byte(p.text)
}

// Len returns the payload size in bytes
func (p Payload) Len() int {
	if p.binary {
		return len(p.bytes)
	}
	return len(p.text)
}

// Serializer converts an outgoing message into a payload
type Serializer interface {
	Serialize(msg any) (Payload, error)
}

// SerializerFunc adapts a function to Serializer
type SerializerFunc func(msg any) (Payload, error)

// Serialize implements Serializer
func (f SerializerFunc) Serialize(msg any) (Payload, error) {
	return f(msg)
}

// Deserializer restores one message type from a payload
type Deserializer interface {
	// TypeName is the wire type name this deserializer handles
	TypeName() string

	// Deserialize decodes the payload into a new message instance
	Deserialize(payload Payload) (contracts.Message, error)
}

// DeserializerFactory builds deserializers for a set of message types
type DeserializerFactory interface {
	Create(types []MessageType) []Deserializer
}

package serialization

import (
	"fmt"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/klauspost/compress/zstd"
)

// ZstdSerializer compresses the output of another serializer. Its payloads
// are always binary.
type ZstdSerializer struct {
	inner   Serializer
	encoder *zstd.Encoder
}

// NewZstdSerializer wraps inner with zstd compression
func NewZstdSerializer(inner Serializer, opts ...zstd.EOption) (*ZstdSerializer, error) {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &ZstdSerializer{inner: inner, encoder: enc}, nil
}

// Serialize implements Serializer
func (s *ZstdSerializer) Serialize(msg any) (Payload, error) {
	p, err := s.inner.Serialize(msg)
	if err != nil {
		return Payload{}, err
	}
	return BinaryPayload(s.encoder.EncodeAll(p.Bytes(), nil)), nil
}

// ZstdDeserializerFactory decompresses payloads before handing them to the
// deserializers built by Inner
type ZstdDeserializerFactory struct {
	Inner   DeserializerFactory
	decoder *zstd.Decoder
}

// NewZstdDeserializerFactory wraps inner with zstd decompression
func NewZstdDeserializerFactory(inner DeserializerFactory) (*ZstdDeserializerFactory, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdDeserializerFactory{Inner: inner, decoder: dec}, nil
}

// Create implements DeserializerFactory
func (f *ZstdDeserializerFactory) Create(types []MessageType) []Deserializer {
	inner := f.Inner.Create(types)
	out := make([]Deserializer, 0, len(inner))
	for _, d := range inner {
		out = append(out, &zstdDeserializer{inner: d, decoder: f.decoder})
	}
	return out
}

type zstdDeserializer struct {
	inner   Deserializer
	decoder *zstd.Decoder
}

func (d *zstdDeserializer) TypeName() string {
	return d.inner.TypeName()
}

func (d *zstdDeserializer) Deserialize(payload Payload) (contracts.Message, error) {
	data, err := d.decoder.DecodeAll(payload.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s payload: %w", d.inner.TypeName(), err)
	}
	return d.inner.Deserialize(BinaryPayload(data))
}

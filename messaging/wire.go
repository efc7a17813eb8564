package messaging

import (
	"sort"
	"sync"

	"github.com/glimte/svcbus-go/serialization"
)

// PropertyMap is a Properties implementation backed by a map. It is safe
// for concurrent use.
type PropertyMap struct {
	mu     sync.RWMutex
	values map[string]PropertyValue
}

// NewPropertyMap creates an empty property map
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{values: make(map[string]PropertyValue)}
}

func (p *PropertyMap) set(name string, v PropertyValue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = v
}

// SetInt implements Properties
func (p *PropertyMap) SetInt(name string, value int32) { p.set(name, Int(value)) }

// SetLong implements Properties
func (p *PropertyMap) SetLong(name string, value int64) { p.set(name, Long(value)) }

// SetDouble implements Properties
func (p *PropertyMap) SetDouble(name string, value float64) { p.set(name, Double(value)) }

// SetBool implements Properties
func (p *PropertyMap) SetBool(name string, value bool) { p.set(name, Bool(value)) }

// SetString implements Properties
func (p *PropertyMap) SetString(name string, value string) { p.set(name, String(value)) }

// Set stores an already typed value
func (p *PropertyMap) Set(name string, value PropertyValue) { p.set(name, value) }

// Get implements Properties
func (p *PropertyMap) Get(name string) (PropertyValue, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Names implements Properties
func (p *PropertyMap) Names() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of properties
func (p *PropertyMap) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// CopyProperties copies every property of src onto dst
func CopyProperties(dst, src Properties) {
	for _, name := range src.Names() {
		if v, ok := src.Get(name); ok {
			v.ApplyTo(dst, name)
		}
	}
}

// StringProperty returns the named property formatted as a string
func StringProperty(props Properties, name string) (string, bool) {
	v, ok := props.Get(name)
	if !ok {
		return "", false
	}
	return v.String(), true
}

type textMessage struct {
	props *PropertyMap
	text  string
}

// NewTextMessage creates a text wire message with an empty property bag
func NewTextMessage(text string) TextMessage {
	return &textMessage{props: NewPropertyMap(), text: text}
}

func (m *textMessage) Properties() Properties { return m.props }
func (m *textMessage) Text() string           { return m.text }

type bytesMessage struct {
	props *PropertyMap
	data  []byte
}

// NewBytesMessage creates a binary wire message with an empty property bag
func NewBytesMessage(data []byte) BytesMessage {
	return &bytesMessage{props: NewPropertyMap(), data: data}
}

func (m *bytesMessage) Properties() Properties { return m.props }
func (m *bytesMessage) Bytes() []byte          { return m.data }

// PayloadOf extracts the serialized payload of a wire message
func PayloadOf(msg WireMessage) (serialization.Payload, bool) {
	switch m := msg.(type) {
	case TextMessage:
		return serialization.TextPayload(m.Text()), true
	case BytesMessage:
		return serialization.BinaryPayload(m.Bytes()), true
	default:
		return serialization.Payload{}, false
	}
}

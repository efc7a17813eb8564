package serialization

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/glimte/svcbus-go/contracts"
)

// MessageType describes a registered message type
type MessageType struct {
	// Name is the wire type name (see contracts.TypeName)
	Name string
	// PkgPath is the import path of the package declaring the type
	PkgPath string

	typ reflect.Type
}

// New creates a new zero-valued instance of the type as a pointer
func (mt MessageType) New() contracts.Message {
	msg, _ := reflect.New(mt.typ).Interface().(contracts.Message)
	return msg
}

// Type returns the underlying struct type
func (mt MessageType) Type() reflect.Type {
	return mt.typ
}

// TypeRegistry manages the message types known to a process. Inbound
// deserializers are built from it, so a type must be registered before it
// can be received.
type TypeRegistry struct {
	types map[string]MessageType
	mu    sync.RWMutex
}

// NewTypeRegistry creates a new type registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[string]MessageType),
	}
}

// Register registers message types under their wire type names
func (r *TypeRegistry) Register(msgs ...contracts.Message) error {
	for _, msg := range msgs {
		if err := r.register(msg); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error
func (r *TypeRegistry) MustRegister(msgs ...contracts.Message) *TypeRegistry {
	if err := r.Register(msgs...); err != nil {
		panic(err)
	}
	return r
}

func (r *TypeRegistry) register(msg contracts.Message) error {
	if msg == nil {
		return fmt.Errorf("message type cannot be nil")
	}

	t := reflect.TypeOf(msg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	// Ensure it's a struct
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("message type must be a struct, got %v", t.Kind())
	}

	// Instances are created as pointers, so *T must be a message
	if !reflect.PointerTo(t).Implements(reflect.TypeOf((*contracts.Message)(nil)).Elem()) {
		return fmt.Errorf("type %v does not implement contracts.Message through a pointer", t)
	}

	name := contracts.TypeName(msg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.types[name]; exists {
		if existing.typ == t {
			return nil
		}
		return fmt.Errorf("type name %s already registered to %v", name, existing.typ)
	}

	r.types[name] = MessageType{Name: name, PkgPath: t.PkgPath(), typ: t}
	return nil
}

// Lookup returns the registered type for a wire type name
func (r *TypeRegistry) Lookup(name string) (MessageType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mt, ok := r.types[name]
	return mt, ok
}

// IsRegistered checks if a type is registered
func (r *TypeRegistry) IsRegistered(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Types returns the registered types whose package path contains
// pkgFilter, sorted by name. An empty filter matches every type.
func (r *TypeRegistry) Types(pkgFilter string) []MessageType {
	r.mu.RLock()
	types := make([]MessageType, 0, len(r.types))
	for _, mt := range r.types {
		if pkgFilter == "" || strings.Contains(mt.PkgPath, pkgFilter) {
			types = append(types, mt)
		}
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types
}

// Select returns the types accepted by pkgFilter and match
func (r *TypeRegistry) Select(pkgFilter string, match func(contracts.Message) bool) []MessageType {
	all := r.Types(pkgFilter)
	selected := all[:0]
	for _, mt := range all {
		if match == nil || match(mt.New()) {
			selected = append(selected, mt)
		}
	}
	return selected
}

package messaging

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"
)

// PropertyTypeName is the reserved property carrying the message type name
const PropertyTypeName = "TypeName"

// PropertyKind identifies the type held by a PropertyValue
type PropertyKind uint8

const (
	KindString PropertyKind = iota
	KindInt
	KindLong
	KindDouble
	KindBool
)

func (k PropertyKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("PropertyKind(%d)", int(k))
	}
}

// PropertyValue is a scalar message property: int32, int64, float64, bool
// or string. The zero value is the empty string.
type PropertyValue struct {
	kind PropertyKind
	n    int64
	f    float64
	b    bool
	s    string
}

// Int returns an int32 property value
func Int(v int32) PropertyValue { return PropertyValue{kind: KindInt, n: int64(v)} }

// Long returns an int64 property value
func Long(v int64) PropertyValue { return PropertyValue{kind: KindLong, n: v} }

// Double returns a float64 property value
func Double(v float64) PropertyValue { return PropertyValue{kind: KindDouble, f: v} }

// Bool returns a bool property value
func Bool(v bool) PropertyValue { return PropertyValue{kind: KindBool, b: v} }

// String returns a string property value
func String(v string) PropertyValue { return PropertyValue{kind: KindString, s: v} }

// Kind returns the kind of value held
func (v PropertyValue) Kind() PropertyKind { return v.kind }

// Int returns the value if it is an int32
func (v PropertyValue) Int() (int32, bool) { return int32(v.n), v.kind == KindInt }

// Long returns the value if it is an int64
func (v PropertyValue) Long() (int64, bool) { return v.n, v.kind == KindLong }

// Double returns the value if it is a float64
func (v PropertyValue) Double() (float64, bool) { return v.f, v.kind == KindDouble }

// Bool returns the value if it is a bool
func (v PropertyValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Str returns the value if it is a string
func (v PropertyValue) Str() (string, bool) { return v.s, v.kind == KindString }

// String formats the value. Numbers use strconv with the shortest
// round-tripping representation, independent of locale.
func (v PropertyValue) String() string {
	switch v.kind {
	case KindInt, KindLong:
		return strconv.FormatInt(v.n, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// ApplyTo stores the value on props through the setter matching its kind
func (v PropertyValue) ApplyTo(props Properties, name string) {
	switch v.kind {
	case KindInt:
		props.SetInt(name, int32(v.n))
	case KindLong:
		props.SetLong(name, v.n)
	case KindDouble:
		props.SetDouble(name, v.f)
	case KindBool:
		props.SetBool(name, v.b)
	default:
		props.SetString(name, v.s)
	}
}

// AnyProperty converts a loosely typed value to a PropertyValue.
//
// Integers that fit in 32 bits become Int, other integers Long (uint64 values
// beyond int64 fall back to their decimal string), floats become Double.
// Anything else is stored as a string: time.Time as RFC 3339 with nanoseconds
// in UTC, []byte as standard base64, fmt.Stringer through String and
// remaining values through fmt's %+v verb.
func AnyProperty(v any) PropertyValue {
	switch x := v.(type) {
	case PropertyValue:
		return x
	case int32:
		return Int(x)
	case int8:
		return Int(int32(x))
	case int16:
		return Int(int32(x))
	case uint8:
		return Int(int32(x))
	case uint16:
		return Int(int32(x))
	case int:
		return Long(int64(x))
	case int64:
		return Long(x)
	case uint32:
		return Long(int64(x))
	case uint:
		return unsignedProperty(uint64(x))
	case uint64:
		return unsignedProperty(x)
	case float32:
		return Double(float64(x))
	case float64:
		return Double(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case []byte:
		return String(base64.StdEncoding.EncodeToString(x))
	case time.Time:
		return String(x.UTC().Format(time.RFC3339Nano))
	case fmt.Stringer:
		return String(x.String())
	case nil:
		return String("")
	default:
		return String(fmt.Sprintf("%+v", x))
	}
}

func unsignedProperty(v uint64) PropertyValue {
	if v > math.MaxInt64 {
		return String(strconv.FormatUint(v, 10))
	}
	return Long(int64(v))
}

// PropertyProvider supplies the metadata properties attached to an outgoing
// message. Implementations must be deterministic and free of side effects.
type PropertyProvider[T any] interface {
	GetProperties(msg T) map[string]PropertyValue
}

// PropertyProviderFunc adapts a function to PropertyProvider
type PropertyProviderFunc[T any] func(msg T) map[string]PropertyValue

// GetProperties implements PropertyProvider
func (f PropertyProviderFunc[T]) GetProperties(msg T) map[string]PropertyValue {
	return f(msg)
}

// DefaultPropertyProvider supplies no properties; published messages then
// carry only the TypeName property.
type DefaultPropertyProvider[T any] struct{}

// GetProperties implements PropertyProvider
func (DefaultPropertyProvider[T]) GetProperties(T) map[string]PropertyValue {
	return map[string]PropertyValue{}
}

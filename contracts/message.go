package contracts

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Message is the base interface for all messages
type Message interface {
	GetID() string
	GetTimestamp() time.Time
	GetCorrelationID() string
	SetCorrelationID(correlationID string)
}

// Request asks a service for information
type Request interface {
	Message
	GetRequestID() string
	GetRequesterID() string
}

// Command represents an action to be performed
type Command interface {
	Message
	GetTargetService() string
}

// Event represents something that has happened
type Event interface {
	Message
	GetAggregateID() string
	GetSequence() int64
}

// Response answers a request
type Response interface {
	Message
	GetRequestID() string
	SetRequestID(requestID string)
	IsSuccess() bool
}

// TypeNamer lets a message override the type name it is published under.
type TypeNamer interface {
	MessageTypeName() string
}

// TypeName returns the name a message is published under: the value of
// MessageTypeName when the message implements TypeNamer, otherwise the simple
// name of its concrete type with pointers removed.
func TypeName(msg any) string {
	if msg == nil {
		return ""
	}
	if n, ok := msg.(TypeNamer); ok {
		if name := n.MessageTypeName(); name != "" {
			return name
		}
	}
	return TypeNameOf(reflect.TypeOf(msg))
}

// TypeNameOf returns the simple name of t with pointers removed.
func TypeNameOf(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		// generic instantiations carry their type arguments in the name
		if i := strings.IndexByte(name, '['); i > 0 {
			return name[:i]
		}
		return name
	}
	return t.String()
}

// Role is one of the four message categories routed by a service endpoint.
type Role int

const (
	RoleRequest Role = iota
	RoleCommand
	RoleEvent
	RoleResponse
)

var roleNames = [...]string{"Request", "Command", "Event", "Response"}

// Roles returns all roles in declaration order.
func Roles() []Role {
	return []Role{RoleRequest, RoleCommand, RoleEvent, RoleResponse}
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// Plural returns the role name used as a destination suffix, e.g. "Commands".
func (r Role) Plural() string {
	return r.String() + "s"
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleRequest && r <= RoleResponse
}

// Matches reports whether msg implements the role's message interface.
func (r Role) Matches(msg any) bool {
	switch r {
	case RoleRequest:
		_, ok := msg.(Request)
		return ok
	case RoleCommand:
		_, ok := msg.(Command)
		return ok
	case RoleEvent:
		_, ok := msg.(Event)
		return ok
	case RoleResponse:
		_, ok := msg.(Response)
		return ok
	}
	return false
}

// ParseRole parses a role name. Both singular and plural forms are accepted,
// case-insensitively.
func ParseRole(s string) (Role, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, r := range Roles() {
		if strings.ToLower(r.String()) == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown message role %q", s)
}

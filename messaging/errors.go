package messaging

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPublish is matched by every error returned from Publish
	ErrPublish = errors.New("messaging: publish failed")

	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("messaging: publisher is closed")

	// ErrNilMessage is returned when publishing a nil message
	ErrNilMessage = errors.New("messaging: message cannot be nil")

	// ErrInvalidConfiguration is returned for an invalid endpoint provider configuration
	ErrInvalidConfiguration = errors.New("messaging: invalid configuration")
)

// ConnectionError reports a failure to create, start or use a broker
// connection, session, producer or consumer
type ConnectionError struct {
	Op          string      // Operation that failed
	Destination Destination // Destination being connected to
	Err         error       // Underlying error
	Timestamp   time.Time   // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("messaging connection error: %s for %s failed: %v", e.Op, e.Destination, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is makes publish-side connection errors match ErrPublish
func (e *ConnectionError) Is(target error) bool {
	if target != ErrPublish {
		return false
	}
	switch e.Op {
	case opReceive, opCreateConsumer, opClose:
		return false
	}
	return true
}

// IsRetryable reports that connection failures may succeed on a later attempt
func (e *ConnectionError) IsRetryable() bool {
	return true
}

// SerializationError reports a payload that could not be converted to or
// from its wire form
type SerializationError struct {
	Op        string    // "serialize" or "deserialize"
	TypeName  string    // Message type name
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("messaging serialization error: %s %s: %v", e.Op, e.TypeName, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is makes serialize errors match ErrPublish
func (e *SerializationError) Is(target error) bool {
	return target == ErrPublish && e.Op == opSerialize
}

// IsRetryable reports that serialization failures are permanent
func (e *SerializationError) IsRetryable() bool {
	return false
}

// SendError reports a message the broker rejected or failed to deliver
type SendError struct {
	Destination Destination // Target destination
	TypeName    string      // Message type name
	Err         error       // Underlying error
	Timestamp   time.Time   // When the error occurred
}

func (e *SendError) Error() string {
	return fmt.Sprintf("messaging send error: failed to send %s to %s: %v", e.TypeName, e.Destination, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Is makes send errors match ErrPublish
func (e *SendError) Is(target error) bool {
	return target == ErrPublish
}

// IsRetryable reports that send failures may succeed on a later attempt
func (e *SendError) IsRetryable() bool {
	return true
}

// MergeSourceError reports the child source that terminated a merged stream
type MergeSourceError struct {
	Index     int       // Position of the child source
	Err       error     // Error reported by the child
	Timestamp time.Time // When the error occurred
}

func (e *MergeSourceError) Error() string {
	return fmt.Sprintf("messaging merge error: source %d failed: %v", e.Index, e.Err)
}

func (e *MergeSourceError) Unwrap() error {
	return e.Err
}

const (
	opCreateConnection = "create connection"
	opStart            = "start connection"
	opCreateSession    = "create session"
	opCreateProducer   = "create producer"
	opCreateConsumer   = "create consumer"
	opConnect          = "connect"
	opClose            = "close connection"
	opReceive          = "receive"
	opSerialize        = "serialize"
	opDeserialize      = "deserialize"
)

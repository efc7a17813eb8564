package contracts

import (
	"time"

	"github.com/google/uuid"
)

// BaseMessage provides common fields for all message types
type BaseMessage struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// NewBaseMessage creates a new base message with generated ID and current timestamp
func NewBaseMessage() BaseMessage {
	return BaseMessage{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// GetID returns the message ID
func (m BaseMessage) GetID() string {
	return m.ID
}

// GetTimestamp returns the message timestamp
func (m BaseMessage) GetTimestamp() time.Time {
	return m.Timestamp
}

// GetCorrelationID returns the correlation ID
func (m BaseMessage) GetCorrelationID() string {
	return m.CorrelationID
}

// SetCorrelationID sets the correlation ID
func (m *BaseMessage) SetCorrelationID(correlationID string) {
	m.CorrelationID = correlationID
}

// BaseRequest provides common fields for request messages
type BaseRequest struct {
	BaseMessage
	RequestID   string `json:"requestId"`
	RequesterID string `json:"requesterId,omitempty"`
}

// NewBaseRequest creates a new request with generated message and request IDs
func NewBaseRequest(requesterID string) BaseRequest {
	return BaseRequest{
		BaseMessage: NewBaseMessage(),
		RequestID:   uuid.New().String(),
		RequesterID: requesterID,
	}
}

// GetRequestID returns the request ID
func (r BaseRequest) GetRequestID() string {
	return r.RequestID
}

// GetRequesterID returns the ID of the party that issued the request
func (r BaseRequest) GetRequesterID() string {
	return r.RequesterID
}

// BaseCommand provides common fields for command messages
type BaseCommand struct {
	BaseMessage
	TargetService string `json:"targetService"`
}

// NewBaseCommand creates a new command with generated ID and current timestamp
func NewBaseCommand(targetService string) BaseCommand {
	return BaseCommand{
		BaseMessage:   NewBaseMessage(),
		TargetService: targetService,
	}
}

// GetTargetService returns the target service for the command
func (c BaseCommand) GetTargetService() string {
	return c.TargetService
}

// BaseEvent provides common fields for event messages
type BaseEvent struct {
	BaseMessage
	AggregateID string `json:"aggregateId"`
	Sequence    int64  `json:"sequence"`
	Source      string `json:"source,omitempty"`
}

// NewBaseEvent creates a new event for the given aggregate
func NewBaseEvent(aggregateID string, sequence int64) BaseEvent {
	return BaseEvent{
		BaseMessage: NewBaseMessage(),
		AggregateID: aggregateID,
		Sequence:    sequence,
	}
}

// GetAggregateID returns the aggregate ID
func (e BaseEvent) GetAggregateID() string {
	return e.AggregateID
}

// GetSequence returns the event sequence number
func (e BaseEvent) GetSequence() int64 {
	return e.Sequence
}

// BaseResponse provides common fields for response messages
type BaseResponse struct {
	BaseMessage
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// NewBaseResponse creates a successful response to the given request ID
func NewBaseResponse(requestID string) BaseResponse {
	return BaseResponse{
		BaseMessage: NewBaseMessage(),
		RequestID:   requestID,
		Success:     true,
	}
}

// GetRequestID returns the ID of the request being answered
func (r BaseResponse) GetRequestID() string {
	return r.RequestID
}

// SetRequestID sets the ID of the request being answered
func (r *BaseResponse) SetRequestID(requestID string) {
	r.RequestID = requestID
}

// IsSuccess returns whether the response indicates success
func (r BaseResponse) IsSuccess() bool {
	return r.Success
}

package messaging

import (
	"context"

	"go.uber.org/multierr"

	"github.com/glimte/svcbus-go/contracts"
)

// ServiceEndpoint is the server side of a service: it receives the service's
// requests and commands and publishes its events and responses
type ServiceEndpoint[T contracts.Message] struct {
	name      string
	requests  Source[contracts.Request]
	commands  Source[contracts.Command]
	events    Publisher[contracts.Event]
	responses Publisher[contracts.Response]
}

// Name returns the service name
func (e *ServiceEndpoint[T]) Name() string {
	return e.name
}

// Requests returns the source of requests addressed to the service
func (e *ServiceEndpoint[T]) Requests() Source[contracts.Request] {
	return e.requests
}

// Commands returns the source of commands addressed to the service
func (e *ServiceEndpoint[T]) Commands() Source[contracts.Command] {
	return e.commands
}

// Messages merges requests and commands into one stream
func (e *ServiceEndpoint[T]) Messages() Source[contracts.Message] {
	return NewMergedMessageSource(Widen(e.requests), Widen(e.commands))
}

// Publish publishes an event on the service's event channel
func (e *ServiceEndpoint[T]) Publish(ctx context.Context, event contracts.Event) error {
	return e.events.Publish(ctx, event)
}

// Reply correlates response with request and publishes it on the service's
// response channel
func (e *ServiceEndpoint[T]) Reply(ctx context.Context, request contracts.Request, response contracts.Response) error {
	if request == nil || response == nil {
		return ErrNilMessage
	}
	response.SetRequestID(request.GetRequestID())
	response.SetCorrelationID(request.GetRequestID())
	return e.responses.Publish(ctx, response)
}

// CanHandle reports whether msg belongs to the service's message type
func (e *ServiceEndpoint[T]) CanHandle(msg contracts.Message) bool {
	_, ok := msg.(T)
	return ok
}

// Close disposes both publishers
func (e *ServiceEndpoint[T]) Close() error {
	return multierr.Combine(e.events.Close(), e.responses.Close())
}

// ServiceEndpointClient is the client side of a service: it sends requests and
// commands to the service and receives its events and responses
type ServiceEndpointClient[T contracts.Message] struct {
	name      string
	events    Source[contracts.Event]
	responses Source[contracts.Response]
	requests  Publisher[contracts.Request]
	commands  Publisher[contracts.Command]
}

// Name returns the service name
func (c *ServiceEndpointClient[T]) Name() string {
	return c.name
}

// Events returns the source of the service's events
func (c *ServiceEndpointClient[T]) Events() Source[contracts.Event] {
	return c.events
}

// Responses returns the source of the service's responses
func (c *ServiceEndpointClient[T]) Responses() Source[contracts.Response] {
	return c.responses
}

// Messages merges events and responses into one stream
func (c *ServiceEndpointClient[T]) Messages() Source[contracts.Message] {
	return NewMergedMessageSource(Widen(c.events), Widen(c.responses))
}

// Send sends a command to the service
func (c *ServiceEndpointClient[T]) Send(ctx context.Context, cmd contracts.Command) error {
	return c.commands.Publish(ctx, cmd)
}

// SendRequest sends a request to the service
func (c *ServiceEndpointClient[T]) SendRequest(ctx context.Context, req contracts.Request) error {
	return c.requests.Publish(ctx, req)
}

// GetResponses subscribes to the responses answering req and then sends req.
// The subscription stays open until ctx is cancelled or it is unsubscribed.
func (c *ServiceEndpointClient[T]) GetResponses(ctx context.Context, req contracts.Request, handler MessageHandler[contracts.Response]) (Subscription, error) {
	if req == nil {
		return nil, ErrNilMessage
	}
	requestID := req.GetRequestID()
	answers := Filter(c.responses, func(resp contracts.Response) bool {
		return resp.GetRequestID() == requestID
	})

	sub, err := answers.Subscribe(ctx, handler)
	if err != nil {
		return nil, err
	}
	if err := c.requests.Publish(ctx, req); err != nil {
		return nil, multierr.Append(err, sub.Unsubscribe())
	}
	return sub, nil
}

// CanHandle reports whether msg belongs to the service's message type
func (c *ServiceEndpointClient[T]) CanHandle(msg contracts.Message) bool {
	_, ok := msg.(T)
	return ok
}

// Close disposes both publishers
func (c *ServiceEndpointClient[T]) Close() error {
	return multierr.Combine(c.requests.Close(), c.commands.Close())
}

package messaging

import (
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ProviderConfig configures an EndpointProvider
type ProviderConfig struct {
	// ServiceName prefixes the four destination names
	ServiceName string

	// ConnectionFactory opens broker connections
	ConnectionFactory ConnectionFactory

	// Serializer encodes outgoing messages. Defaults to JSON.
	Serializer serialization.Serializer

	// Registry holds the message types that can be received
	Registry *serialization.TypeRegistry

	// Deserializers builds inbound deserializers. Defaults to JSON.
	Deserializers serialization.DeserializerFactory

	// QueueRoles lists the roles routed through queues; all other roles use topics
	QueueRoles []contracts.Role

	// PackageFilter restricts inbound types to packages whose import path
	// contains it. Empty accepts every registered type.
	PackageFilter string

	// PropertyProvider supplies properties for outgoing messages
	PropertyProvider PropertyProvider[contracts.Message]

	// AckMode is used by inbound sources
	AckMode AckMode

	Logger  *slog.Logger
	Metrics MetricsCollector
}

// Validate checks the configuration
func (c ProviderConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required, validation.Match(serviceNamePattern)),
		validation.Field(&c.ConnectionFactory, validation.Required),
		validation.Field(&c.Registry, validation.Required),
		validation.Field(&c.QueueRoles, validation.Each(validation.By(validRole))),
		validation.Field(&c.AckMode, validation.In(AutoAcknowledge, ClientAcknowledge)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

func validRole(value interface{}) error {
	role, ok := value.(contracts.Role)
	if !ok || !role.Valid() {
		return fmt.Errorf("%v is not a message role", value)
	}
	return nil
}

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Serializer == nil {
		c.Serializer = serialization.NewJSONSerializer()
	}
	if c.Deserializers == nil {
		c.Deserializers = serialization.JSONDeserializerFactory{}
	}
	if c.PropertyProvider == nil {
		c.PropertyProvider = DefaultPropertyProvider[contracts.Message]{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = &NoOpMetricsCollector{}
	}
	return c
}

// EndpointProvider derives a service's four destinations and assembles its
// server and client endpoints. T is the service's message type; only
// messages implementing it are received by the endpoints.
type EndpointProvider[T contracts.Message] struct {
	serviceName  string
	destinations map[contracts.Role]Destination
	factory      *DestinationFactory
}

// NewEndpointProvider validates cfg and fixes the destination of every role
func NewEndpointProvider[T contracts.Message](cfg ProviderConfig) (*EndpointProvider[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	queued := make(map[contracts.Role]bool, len(cfg.QueueRoles))
	for _, r := range cfg.QueueRoles {
		queued[r] = true
	}

	destinations := make(map[contracts.Role]Destination, 4)
	for _, r := range contracts.Roles() {
		kind := Topic
		if queued[r] {
			kind = Queue
		}
		destinations[r] = Destination{Name: DestinationName(cfg.ServiceName, r), Kind: kind}
	}

	return &EndpointProvider[T]{
		serviceName:  cfg.ServiceName,
		destinations: destinations,
		factory:      NewDestinationFactory(cfg),
	}, nil
}

// ServiceName returns the service name
func (p *EndpointProvider[T]) ServiceName() string {
	return p.serviceName
}

// Destination returns the destination of a role
func (p *EndpointProvider[T]) Destination(role contracts.Role) Destination {
	return p.destinations[role]
}

// CreateEndpoint builds the server side: sources over Requests and Commands,
// publishers over Events and Responses. No broker I/O happens here.
func (p *EndpointProvider[T]) CreateEndpoint() *ServiceEndpoint[T] {
	return &ServiceEndpoint[T]{
		name:      p.serviceName,
		requests:  CreateSource[contracts.Request](p.factory, p.destinations[contracts.RoleRequest], p.accepts(contracts.RoleRequest)),
		commands:  CreateSource[contracts.Command](p.factory, p.destinations[contracts.RoleCommand], p.accepts(contracts.RoleCommand)),
		events:    CreatePublisher[contracts.Event](p.factory, p.destinations[contracts.RoleEvent]),
		responses: CreatePublisher[contracts.Response](p.factory, p.destinations[contracts.RoleResponse]),
	}
}

// CreateEndpointClient builds the client side: sources over Events and
// Responses, publishers over Requests and Commands. No broker I/O happens here.
func (p *EndpointProvider[T]) CreateEndpointClient() *ServiceEndpointClient[T] {
	return &ServiceEndpointClient[T]{
		name:      p.serviceName,
		events:    CreateSource[contracts.Event](p.factory, p.destinations[contracts.RoleEvent], p.accepts(contracts.RoleEvent)),
		responses: CreateSource[contracts.Response](p.factory, p.destinations[contracts.RoleResponse], p.accepts(contracts.RoleResponse)),
		requests:  CreatePublisher[contracts.Request](p.factory, p.destinations[contracts.RoleRequest]),
		commands:  CreatePublisher[contracts.Command](p.factory, p.destinations[contracts.RoleCommand]),
	}
}

// accepts matches registered types of the given role that belong to the service
func (p *EndpointProvider[T]) accepts(role contracts.Role) func(contracts.Message) bool {
	return func(msg contracts.Message) bool {
		_, ok := msg.(T)
		return ok && role.Matches(msg)
	}
}

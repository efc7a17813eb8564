package messaging

import (
	"log/slog"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

// DestinationName derives the conventional destination name for a service
// role, e.g. "Orders.Commands"
func DestinationName(serviceName string, role contracts.Role) string {
	return serviceName + "." + role.Plural()
}

// DestinationFactory builds publishers and sources that share one broker
// connection factory, serializer, type registry and deserializer factory
type DestinationFactory struct {
	connections   ConnectionFactory
	serializer    serialization.Serializer
	registry      *serialization.TypeRegistry
	deserializers serialization.DeserializerFactory
	properties    PropertyProvider[contracts.Message]
	packageFilter string
	ackMode       AckMode
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewDestinationFactory creates a destination factory from a validated
// provider configuration
func NewDestinationFactory(cfg ProviderConfig) *DestinationFactory {
	cfg = cfg.withDefaults()
	return &DestinationFactory{
		connections:   cfg.ConnectionFactory,
		serializer:    cfg.Serializer,
		registry:      cfg.Registry,
		deserializers: cfg.Deserializers,
		properties:    cfg.PropertyProvider,
		packageFilter: cfg.PackageFilter,
		ackMode:       cfg.AckMode,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

// CreatePublisher builds a lazily connecting publisher for destination
func CreatePublisher[T contracts.Message](f *DestinationFactory, destination Destination) *MessagePublisher[T] {
	props := f.properties
	return NewMessagePublisher[T](
		f.connections,
		destination,
		f.serializer,
		PropertyProviderFunc[T](func(msg T) map[string]PropertyValue {
			return props.GetProperties(msg)
		}),
		WithPublisherLogger(f.logger),
		WithPublisherMetrics(f.metrics),
	)
}

// CreateSource builds a source for destination that deserializes every
// registered type accepted by the package filter and by match
func CreateSource[T contracts.Message](f *DestinationFactory, destination Destination, match func(contracts.Message) bool) *MessageSource[T] {
	types := f.registry.Select(f.packageFilter, match)
	return NewMessageSource[T](
		f.connections,
		f.deserializers.Create(types),
		destination,
		WithSourceLogger(f.logger),
		WithSourceMetrics(f.metrics),
		WithAckMode(f.ackMode),
	)
}

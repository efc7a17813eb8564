// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package svcbus is the entry point for configuring service endpoints.
//
//	server, err := svcbus.Configure[OrderMessage]().
//		Named("Orders").
//		UsingBroker(rabbitmq.NewConnectionFactory(url)).
//		WithMessageTypes(&PlaceOrder{}, &OrderPlaced{}).
//		WithQueueRoles(contracts.RoleCommand).
//		AsServer()
package svcbus

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/messaging"
	"github.com/glimte/svcbus-go/serialization"
)

// Builder collects the configuration of one service. Methods record the
// first error and later calls keep returning it from the As* terminals.
type Builder[T contracts.Message] struct {
	cfg      messaging.ProviderConfig
	registry *serialization.TypeRegistry
	err      error
}

// Configure starts the configuration of a service whose messages implement T
func Configure[T contracts.Message]() *Builder[T] {
	registry := serialization.NewTypeRegistry()
	return &Builder[T]{
		registry: registry,
		cfg:      messaging.ProviderConfig{Registry: registry},
	}
}

// Named sets the service name used to derive destination names
func (b *Builder[T]) Named(serviceName string) *Builder[T] {
	b.cfg.ServiceName = serviceName
	return b
}

// UsingBroker sets the connection factory of the broker transport
func (b *Builder[T]) UsingBroker(factory messaging.ConnectionFactory) *Builder[T] {
	b.cfg.ConnectionFactory = factory
	return b
}

// WithMessageTypes registers the message types the service can receive
func (b *Builder[T]) WithMessageTypes(msgs ...contracts.Message) *Builder[T] {
	if b.err == nil {
		if err := b.registry.Register(msgs...); err != nil {
			b.err = fmt.Errorf("register message types: %w", err)
		}
	}
	return b
}

// UsingRegistry replaces the type registry
func (b *Builder[T]) UsingRegistry(registry *serialization.TypeRegistry) *Builder[T] {
	b.registry = registry
	b.cfg.Registry = registry
	return b
}

// FilterMessageTypes restricts inbound types to packages whose import path
// contains pkgFilter
func (b *Builder[T]) FilterMessageTypes(pkgFilter string) *Builder[T] {
	b.cfg.PackageFilter = pkgFilter
	return b
}

// WithQueueRoles routes the given roles through queues; other roles use topics
func (b *Builder[T]) WithQueueRoles(roles ...contracts.Role) *Builder[T] {
	b.cfg.QueueRoles = append(b.cfg.QueueRoles, roles...)
	return b
}

// SerializedWith sets the serializer and the matching deserializer factory
func (b *Builder[T]) SerializedWith(serializer serialization.Serializer, deserializers serialization.DeserializerFactory) *Builder[T] {
	b.cfg.Serializer = serializer
	b.cfg.Deserializers = deserializers
	return b
}

// WithPropertyProvider sets the provider of outgoing message properties
func (b *Builder[T]) WithPropertyProvider(provider messaging.PropertyProvider[contracts.Message]) *Builder[T] {
	b.cfg.PropertyProvider = provider
	return b
}

// WithAckMode sets the acknowledgement mode of inbound sources
func (b *Builder[T]) WithAckMode(mode messaging.AckMode) *Builder[T] {
	b.cfg.AckMode = mode
	return b
}

// WithLogger sets the logger
func (b *Builder[T]) WithLogger(logger *slog.Logger) *Builder[T] {
	b.cfg.Logger = logger
	return b
}

// WithMetrics sets the metrics collector
func (b *Builder[T]) WithMetrics(metrics messaging.MetricsCollector) *Builder[T] {
	b.cfg.Metrics = metrics
	return b
}

// Provider validates the configuration and returns the endpoint provider
func (b *Builder[T]) Provider() (*messaging.EndpointProvider[T], error) {
	if b.err != nil {
		return nil, b.err
	}
	return messaging.NewEndpointProvider[T](b.cfg)
}

// AsServer builds the endpoint a service uses to receive requests and
// commands and to publish events and responses
func (b *Builder[T]) AsServer() (*messaging.ServiceEndpoint[T], error) {
	provider, err := b.Provider()
	if err != nil {
		return nil, err
	}
	return provider.CreateEndpoint(), nil
}

// AsClient builds the endpoint other services use to talk to this service
func (b *Builder[T]) AsClient() (*messaging.ServiceEndpointClient[T], error) {
	provider, err := b.Provider()
	if err != nil {
		return nil, err
	}
	return provider.CreateEndpointClient(), nil
}

// AsClientAndServer builds both sides over one provider
func (b *Builder[T]) AsClientAndServer() (*Service[T], error) {
	provider, err := b.Provider()
	if err != nil {
		return nil, err
	}
	return &Service[T]{
		Server: provider.CreateEndpoint(),
		Client: provider.CreateEndpointClient(),
	}, nil
}

// Service pairs the server and client endpoints of one service
type Service[T contracts.Message] struct {
	Server *messaging.ServiceEndpoint[T]
	Client *messaging.ServiceEndpointClient[T]
}

// Close closes both endpoints
func (s *Service[T]) Close() error {
	return multierr.Combine(s.Server.Close(), s.Client.Close())
}

// Package messaging connects typed service messages to a JMS-style broker.
//
// This package implements the endpoint layer of the bus:
//   - MessagePublisher: lazily connecting, type-safe publisher for one destination
//   - MessageSource: deserializing consumer for one destination
//   - MergedMessageSource: one stream over several sources, failing fast
//   - EndpointProvider: derives a service's four destinations and builds its endpoints
//   - ServiceEndpoint / ServiceEndpointClient: server and client views of a service
//   - RetryingPublisher: retry and circuit breaker decorator for any Publisher
//
// A service named "Orders" owns the destinations Orders.Requests,
// Orders.Commands, Orders.Events and Orders.Responses. Roles listed in
// ProviderConfig.QueueRoles use queues, all others use topics.
//
// Brokers plug in through the ConnectionFactory, Connection, Session,
// Producer and Consumer interfaces; see the transports directory for
// RabbitMQ, NATS and in-memory implementations.
//
// Example usage:
//
//	provider, err := messaging.NewEndpointProvider[OrderMessage](messaging.ProviderConfig{
//		ServiceName:       "Orders",
//		ConnectionFactory: broker,
//		Registry:          registry,
//		QueueRoles:        []contracts.Role{contracts.RoleCommand},
//	})
//	if err != nil {
//		return err
//	}
//
//	client := provider.CreateEndpointClient()
//	defer client.Close()
//
//	err = client.Send(ctx, &PlaceOrder{
//		BaseCommand: contracts.NewBaseCommand("Orders"),
//		OrderID:     "o-1",
//	})
package messaging

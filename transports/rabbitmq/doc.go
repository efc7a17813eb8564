// Package rabbitmq implements the messaging broker interfaces on top of
// RabbitMQ using github.com/rabbitmq/amqp091-go.
//
// Destinations map onto AMQP topology as follows:
//   - Queue: a durable queue on the default exchange; competing consumers
//     share its messages
//   - Topic: a durable fanout exchange; every consumer binds its own
//     exclusive, auto-delete queue and receives every message
//
// Message properties travel as AMQP headers. Text payloads are published
// with content type text/plain, binary payloads with application/octet-stream.
package rabbitmq

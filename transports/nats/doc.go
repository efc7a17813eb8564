// Package nats implements the messaging broker interfaces on top of core
// NATS using github.com/nats-io/nats.go.
//
// A destination name is used as the NATS subject. Queue destinations
// subscribe through a queue group named after the subject, so each message
// reaches one consumer; topic destinations use plain subscriptions and
// reach every consumer.
//
// Core NATS has no acknowledgements; both acknowledgement modes behave as
// auto-acknowledge.
package nats

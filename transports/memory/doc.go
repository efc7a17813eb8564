// Package memory provides an in-process broker implementing the messaging
// connection interfaces. Queues hand each message to one consumer, topics
// copy each message to every consumer subscribed at publish time.
//
// The broker is intended for tests, examples and single-process setups.
package memory

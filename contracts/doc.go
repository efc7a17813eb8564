// Package contracts provides the message types exchanged by service endpoints.
//
// Every message belongs to exactly one role:
//   - Request: asks a service for information and expects one or more Responses
//   - Command: asks a service to perform an action
//   - Event: announces something that has happened inside a service
//   - Response: answers a Request
//
// Applications embed the Base* structs in their own message types. The
// concrete Go type name of a message (see TypeName) travels with it on the
// wire and selects the deserializer on the receiving side.
package contracts

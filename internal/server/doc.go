// Package server implements the HTTP and WebSocket transport of the chat relay.
//
// The implementation is organized into specialized files for the hub, clients,
// origin checks, routing, and HTTP handlers. Routing decisions themselves live
// in the router package; this package only moves frames between sockets and
// the router.
package server

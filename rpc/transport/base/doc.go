// Package base provides the transport layer independent of the specific network
// protocol (TCP, Unix sockets). Protocol specific packages only supply a connector.
//
// The package focuses on:
//   - A synchronous line client: one request line out, one reply line in
//   - Frame based client and server transports for the host channel
//   - Bounded reads and per round trip deadlines
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - lineClientTransport: Holds at most one connection. Writes loop over partial
//     writes, replies are accumulated across reads until a newline appears, bytes after
//     the newline are kept for the next reply. A reply longer than the configured limit
//     is a transport error.
//
//   - frameClientTransport: Sends one frame and waits for the reply frame.
//
//   - serverTransport: Accepts connections, tracks them in a concurrent map and runs
//     one goroutine per connection. Close stops accepting, drops all connections and
//     waits for their handlers.
//
// Frame Layout (big endian):
//
//	+----------+----------+----------+---------------+
//	| kind (8) | arg (8)  | len (4)  | payload (len) |
//	+----------+----------+----------+---------------+
//
// Errors:
//
//	Every I/O error is wrapped with common.ErrTransport, deadline expiry with
//	common.ErrTimeout.
//
// Thread Safety:
//
//	The client transports are not safe for concurrent use, they are owned by a single
//	goroutine. The server transports are safe for concurrent use.
package base

// Package transport defines the interfaces for the two wire protocols of the bridge.
//
// The package focuses on:
//   - The line oriented client transport used to reach the answering service
//   - The binary frame transport of the host channel, over which the host shim
//     delivers embedded and referenced requests and operator actions
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - ILineClientTransport: One synchronous connection, one line out and one line in.
//
//   - IFrameClientTransport: Client side of the host channel, used by the notify
//     commands.
//
//   - IFrameServerTransport / ILineServerTransport: Server side transports that accept
//     connections and hand every request to a registered handler.
//
//   - FrameHandleFunc / LineHandleFunc: Function types for request handling callbacks.
package transport

// Package rpc provides the communication layer of the bridge. It connects the host
// shim to the bridge and the bridge to the remote answering service.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities, including the line protocol
//     messages, the host channel frames, configuration structures, error sentinels
//     and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets) for the line protocol and the host channel.
//
//   - serializer: Line serialization (json, gjson) converting between the protocol
//     messages and single text lines.
//
//   - client: The connection to the answering service, its reconnect state machine
//     and the Forwarder that sends one block and returns the answer.
//
//   - server: The development answering service and the host channel server.
package rpc

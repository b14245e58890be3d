// Package common provides the data structures and utilities shared by the bridge,
// its transports and the development answering service.
//
// The package focuses on:
//   - The line protocol spoken with the answering service
//   - The binary frame protocol spoken with the host shim
//   - Configuration structures for the bridge and the answering service
//   - Custom logging implementation integrated with Dragonboat's logger package
//   - The transport error taxonomy
//
// Key Components:
//
//   - IPCRequest / IPCReply: One JSON object per line. A request carries the command
//     marker "ipc", the source tag (dwData), the declared length (cbData) and the block
//     as uppercase hex. A reply carries an explicit "ok" marker and, on success, the
//     answered block as hex (replyHex).
//
//   - Frame / FrameKind: Messages on the host channel. Requests are embedded blocks,
//     referenced blocks (region identifier + offset), restart, status and shutdown.
//     Replies use kind 1 for success and 0 for failure.
//
//   - BridgeConfig, ClientConfig, AnsweringConfig: Configuration structures with a
//     sectioned String() representation that is logged at startup.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
//
//   - ErrTransport / ErrTimeout: Sentinel errors for connection level failures.
package common

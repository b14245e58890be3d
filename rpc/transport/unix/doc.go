// Package unix implements transports over Unix domain sockets. The host channel
// between the host shim and the bridge uses them by default since both run on the
// same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, a stale socket file left behind
//     by a previous run is removed first
package unix

// Package tcp implements TCP socket based transports for the bridge. It provides
// concrete implementations of the base package's connector interfaces.
//
// The answering service is usually reached over TCP, optionally on another machine.
// The client connector applies the configured socket options (no delay, keep alive,
// linger, buffer sizes) to every connection it opens.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector
//
//   - serverConnector: TCP implementation of base.IServerConnector
package tcp

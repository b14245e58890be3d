// Package cmd implements the command-line interface of uBridge.
//
// The package is organized into several subpackages:
//
//   - run: Starts the bridge (host channel, shared regions, connection to the answering service)
//   - echo: Starts a development answering service (echo and memory adapters)
//   - notify: Sends notifications to a running bridge over the host channel, including a perf test
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See ubridge -help for a list of all commands.
package cmd

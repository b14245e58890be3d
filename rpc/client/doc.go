// Package client implements the bridge side of the answering service protocol.
//
// The package focuses on:
//   - Keeping exactly one connection to the answering service alive
//   - Turning a block into a request line and the reply line back into bytes
//   - Classifying every failure as a transport failure that drops the connection
//
// Key Components:
//
//   - Connection: State machine over a transport.ILineClientTransport. It moves from
//     Disconnected to Connecting to Connected and back to Disconnected on any I/O
//     failure. While disconnected a reconnect timer is armed whose interval comes
//     from a backoff.BackOff policy (NewReconnectPolicy). The owner selects on
//     TimerC and calls Tick, so all transitions happen on the owner's goroutine.
//     Restart drops the connection and dials again, optionally a new endpoint.
//
//   - Forwarder: Sends one block per call. The reply must carry the success marker
//     and a valid hex payload, otherwise the connection is dropped and the error
//     wraps common.ErrTransport.
//
// Usage Example:
//
//	conn := client.NewConnection(
//		tcp.NewTCPLineClientTransport(),
//		common.ClientConfig{Transport: common.TransportConfig{Endpoint: "127.0.0.1:9000"}},
//		client.NewReconnectPolicy(time.Second, 0),
//	)
//	fwd := client.NewForwarder(conn, serializer.NewJSONSerializer())
//	reply, err := fwd.Forward(block, tag)
//
// Thread Safety:
//
//	Neither Connection nor Forwarder is safe for concurrent use. The bridge owns
//	both and uses them from its single event loop.
package client

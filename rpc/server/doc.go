// Package server implements the two server sides of the bridge protocols.
//
// The package focuses on:
//   - A development answering service that speaks the line protocol, so the bridge
//     can be run and tested without the simulator
//   - The inbound host channel, over which the host shim hands notifications to the
//     bridge loop
//
// Key Components:
//
//   - IAnsweringAdapter: Interface defining how a forwarded block is answered.
//
//   - NewEchoAdapter: Answers every block unchanged.
//
//   - NewMemoryAdapter: Emulates a flat offset space. WRITE records are stored,
//     READ records are filled from what was written before.
//
//   - AnsweringServer: Decodes request lines, validates the command marker and the
//     hex payload, calls the adapter and encodes the reply line. A cbData that does not
//     match the payload is logged, the payload length wins.
//
//   - HostServer: Translates host channel frames into calls on an IBridge. Reply
//     frames carry kind 1 on success and kind 0 plus the error text on failure.
//
// Usage Example:
//
//	s := server.NewAnsweringServer(config, tcp.NewTCPLineServerTransport(),
//		serializer.NewJSONSerializer(), server.NewMemoryAdapter(0))
//	if err := s.Serve(); err != nil {
//		return err
//	}
//	defer s.Close()
package server

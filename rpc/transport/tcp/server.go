package tcp

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/ValentinKolb/uBridge/rpc/transport/base"
	"net"
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(endpoint string) (net.Listener, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}
	return listener, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Methods
// --------------------------------------------------------------------------

// NewTCPLineServerTransport creates a line protocol server (answering service)
func NewTCPLineServerTransport() transport.ILineServerTransport {
	return base.NewLineServerTransport(&serverConnector{})
}

// NewTCPFrameServerTransport creates a host channel server
func NewTCPFrameServerTransport() transport.IFrameServerTransport {
	return base.NewFrameServerTransport(&serverConnector{})
}

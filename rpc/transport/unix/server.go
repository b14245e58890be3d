package unix

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/ValentinKolb/uBridge/rpc/transport/base"
	"net"
	"os"
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(socketPath string) (net.Listener, error) {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	// Create Unix socket listener
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %v", err)
	}

	return listener, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Methods
// --------------------------------------------------------------------------

// NewUnixLineServerTransport creates a line protocol server (answering service)
func NewUnixLineServerTransport() transport.ILineServerTransport {
	return base.NewLineServerTransport(&serverConnector{})
}

// NewUnixFrameServerTransport creates a host channel server
func NewUnixFrameServerTransport() transport.IFrameServerTransport {
	return base.NewFrameServerTransport(&serverConnector{})
}

package transport

import (
	"github.com/ValentinKolb/uBridge/rpc/common"
	"net"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// FrameHandleFunc is called by a frame server transport for every request frame
// received on the host channel. The returned frame is written back as the reply.
type FrameHandleFunc func(req common.Frame) (resp common.Frame)

// LineHandleFunc is called by a line server transport for every request line.
// The returned line is written back followed by a newline.
type LineHandleFunc func(line []byte) (resp []byte)

// IServerTransport is the part shared by all server transports
type IServerTransport interface {
	// Listen creates the listener and starts accepting connections in the background.
	// It returns once the listener is ready.
	Listen(config common.ServerConfig) error
	// Addr returns the listening address, nil before Listen
	Addr() net.Addr
	// Close stops accepting, closes all open connections and waits for their handlers
	Close() error
}

// IFrameServerTransport serves the binary host channel
type IFrameServerTransport interface {
	IServerTransport
	// RegisterHandler registers the handler, it must be called before Listen
	RegisterHandler(handler FrameHandleFunc)
}

// ILineServerTransport serves the line protocol of the answering service
type ILineServerTransport interface {
	IServerTransport
	// RegisterHandler registers the handler, it must be called before Listen
	RegisterHandler(handler LineHandleFunc)
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ILineClientTransport is a single connection to the answering service.
// It is not safe for concurrent use, at most one round trip may be in flight.
type ILineClientTransport interface {
	// Connect opens the connection. It fails if a connection is already open.
	Connect(config common.ClientConfig) error
	// RoundTrip writes one line (a newline is appended) and reads one reply line.
	// Errors wrap common.ErrTransport, expired deadlines wrap common.ErrTimeout.
	RoundTrip(line []byte) ([]byte, error)
	// IsConnected reports whether a connection is open
	IsConnected() bool
	// Close closes the connection if one is open
	Close() error
}

// IFrameClientTransport is a single connection to the host channel of a bridge
type IFrameClientTransport interface {
	// Connect opens the connection
	Connect(config common.ClientConfig) error
	// Send writes a request frame and waits for the reply frame
	Send(req common.Frame) (common.Frame, error)
	// Close closes the connection
	Close() error
}

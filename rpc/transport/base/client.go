package base

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"time"
)

var (
	LineLogger = logger.GetLogger("transport/line")
	HostLogger = logger.GetLogger("transport/host")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection, a timeout of 0 uses the OS default
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Line client transport
// -----------------------------------------------------------

// lineClientTransport owns at most one connection to the answering service
type lineClientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	conn      net.Conn
}

// NewLineClientTransport creates a new line client transport with the specified connector
func NewLineClientTransport(connector IClientConnector) transport.ILineClientTransport {
	return &lineClientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ILineClientTransport)
// --------------------------------------------------------------------------

func (t *lineClientTransport) Connect(config common.ClientConfig) error {
	// Never open a second connection
	if t.conn != nil {
		return fmt.Errorf("%w: already connected to %s", common.ErrTransport, t.config.Transport.Endpoint)
	}
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("%w: no endpoint provided", common.ErrTransport)
	}

	conn, err := t.connector.Connect(config.Transport.Endpoint, config.Timeout())
	if err != nil {
		return classify("connect "+config.Transport.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return fmt.Errorf("%w: upgrade connection to %s: %v", common.ErrTransport, config.Transport.Endpoint, err)
	}

	t.config = config
	t.conn = conn

	LineLogger.Infof("Connected to %s using %s transport", config.Transport.Endpoint, t.connector.GetName())
	return nil
}

func (t *lineClientTransport) RoundTrip(line []byte) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("%w: not connected", common.ErrTransport)
	}

	// One deadline covers the complete round trip
	if timeout := t.config.Timeout(); timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, classify("set deadline", err)
		}
	}

	start := time.Now()
	if err := writeLine(t.conn, line); err != nil {
		return nil, classify("send", err)
	}

	// the reply buffer lives for this round trip only
	reader := newLineReader(t.conn, t.config.LineLimit())
	reply, err := reader.ReadLine()
	if err != nil {
		return nil, classify("receive", err)
	}
	if n := reader.Buffered(); n > 0 {
		return nil, fmt.Errorf("%w: receive: %d unexpected bytes after reply line", common.ErrTransport, n)
	}

	LineLogger.Debugf("round trip of %d/%d bytes took %s", len(line)+1, len(reply)+1, time.Since(start))
	return reply, nil
}

func (t *lineClientTransport) IsConnected() bool {
	return t.conn != nil
}

func (t *lineClientTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	LineLogger.Debugf("closed connection to %s", t.config.Transport.Endpoint)
	return err
}

// -----------------------------------------------------------
// Frame client transport
// -----------------------------------------------------------

// frameClientTransport is a synchronous client of the host channel
type frameClientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	conn      net.Conn
}

// NewFrameClientTransport creates a new host channel client with the specified connector
func NewFrameClientTransport(connector IClientConnector) transport.IFrameClientTransport {
	return &frameClientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IFrameClientTransport)
// --------------------------------------------------------------------------

func (t *frameClientTransport) Connect(config common.ClientConfig) error {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}

	conn, err := t.connector.Connect(config.Transport.Endpoint, config.Timeout())
	if err != nil {
		return classify("connect "+config.Transport.Endpoint, err)
	}
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return fmt.Errorf("%w: upgrade connection to %s: %v", common.ErrTransport, config.Transport.Endpoint, err)
	}

	t.config = config
	t.conn = conn
	return nil
}

func (t *frameClientTransport) Send(req common.Frame) (common.Frame, error) {
	if t.conn == nil {
		return common.Frame{}, fmt.Errorf("%w: not connected", common.ErrTransport)
	}

	if timeout := t.config.Timeout(); timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return common.Frame{}, classify("set deadline", err)
		}
	}

	if err := writeFrame(t.conn, req); err != nil {
		return common.Frame{}, classify("send", err)
	}

	resp, err := readFrame(t.conn, t.config.LineLimit())
	if err != nil {
		return common.Frame{}, classify("receive", err)
	}
	return resp, nil
}

func (t *frameClientTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

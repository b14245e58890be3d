package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements accepting and tracking connections, the protocol
// specific request loop is provided by serveConn
type serverTransport struct {
	connector IServerConnector
	log       logger.ILogger
	config    common.ServerConfig
	listener  net.Listener
	conns     *xsync.MapOf[uint64, net.Conn]
	nextID    atomic.Uint64
	closing   atomic.Bool
	wg        sync.WaitGroup
	serveConn func(conn net.Conn) error
}

func newServerTransport(connector IServerConnector, log logger.ILogger) *serverTransport {
	return &serverTransport{
		connector: connector,
		log:       log,
		conns:     xsync.NewMapOf[uint64, net.Conn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.listener != nil {
		return fmt.Errorf("already listening on %s", t.listener.Addr())
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.config = config
	t.listener = listener

	t.log.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr())

	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

func (t *serverTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Close() error {
	if !t.closing.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}

	// Unblock all connection handlers
	t.conns.Range(func(id uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})

	t.wg.Wait()
	t.log.Infof("Stopped %s server", t.connector.GetName())
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed
func (t *serverTransport) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		id := t.nextID.Add(1)
		t.conns.Store(id, conn)

		// a Close racing with Accept must not leak the connection
		if t.closing.Load() {
			t.conns.Delete(id)
			conn.Close()
			return
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(id, conn)
	}
}

// handleConnection runs the request loop of one connection
func (t *serverTransport) handleConnection(id uint64, conn net.Conn) {
	defer t.wg.Done()
	defer t.conns.Delete(id)
	defer conn.Close()

	t.log.Debugf("Accepted connection %d from %s", id, conn.RemoteAddr())

	err := t.serveConn(conn)

	// Case EOF or close during shutdown: connection closed normally
	if common.IsExpectedCloseError(err) || t.closing.Load() {
		t.log.Debugf("Connection %d closed", id)
		return
	}
	t.log.Errorf("Error handling connection %d: %v", id, err)
}

// setWriteDeadline applies the configured reply timeout
func (t *serverTransport) setWriteDeadline(conn net.Conn) error {
	if t.config.TimeoutSecond <= 0 {
		return nil
	}
	return conn.SetWriteDeadline(time.Now().Add(time.Duration(t.config.TimeoutSecond) * time.Second))
}

// -----------------------------------------------------------
// Frame server (host channel)
// -----------------------------------------------------------

type frameServerTransport struct {
	*serverTransport
	handler transport.FrameHandleFunc
}

// NewFrameServerTransport creates a host channel server with the specified connector.
// Frames of one connection are handled strictly in order.
func NewFrameServerTransport(connector IServerConnector) transport.IFrameServerTransport {
	t := &frameServerTransport{
		serverTransport: newServerTransport(connector, HostLogger),
	}
	t.serveConn = t.serveFrames
	return t
}

func (t *frameServerTransport) RegisterHandler(handler transport.FrameHandleFunc) {
	t.handler = handler
}

func (t *frameServerTransport) serveFrames(conn net.Conn) error {
	maxPayload := t.config.MaxPayloadBytes
	if maxPayload <= 0 {
		maxPayload = common.DefaultMaxFrameBytes
	}

	for {
		req, err := readFrame(conn, maxPayload)
		if err != nil {
			return err
		}

		start := time.Now()
		resp := t.handler(req)
		t.log.Debugf("Processed %s frame took %s", req.Kind, time.Since(start))

		if err := t.setWriteDeadline(conn); err != nil {
			return err
		}
		if err := writeFrame(conn, resp); err != nil {
			return err
		}
	}
}

// -----------------------------------------------------------
// Line server (answering service)
// -----------------------------------------------------------

type lineServerTransport struct {
	*serverTransport
	handler transport.LineHandleFunc
}

// NewLineServerTransport creates a line protocol server with the specified connector
func NewLineServerTransport(connector IServerConnector) transport.ILineServerTransport {
	t := &lineServerTransport{
		serverTransport: newServerTransport(connector, LineLogger),
	}
	t.serveConn = t.serveLines
	return t
}

func (t *lineServerTransport) RegisterHandler(handler transport.LineHandleFunc) {
	t.handler = handler
}

func (t *lineServerTransport) serveLines(conn net.Conn) error {
	limit := t.config.MaxPayloadBytes
	if limit <= 0 {
		limit = common.DefaultMaxLineBytes
	}
	reader := newLineReader(conn, limit)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			return err
		}

		// blank lines are keep-alives
		if len(line) == 0 {
			continue
		}

		resp := t.handler(line)

		if err := t.setWriteDeadline(conn); err != nil {
			return err
		}
		if err := writeLine(conn, resp); err != nil {
			return err
		}
	}
}

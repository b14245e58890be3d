package bridge

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/region"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrContractViolation is returned when the answered block differs in length from the forwarded one
	ErrContractViolation = errors.New("bridge: reply length does not match request length")
	// ErrInvalidRequest is returned for notifications that can not be served, e.g. a negative offset
	ErrInvalidRequest = errors.New("bridge: invalid request")
	// ErrShutdown is returned for notifications posted after the loop stopped
	ErrShutdown = errors.New("bridge: shut down")
)

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// Event is one notification processed by the bridge loop. The set of events is closed.
type Event interface {
	event()
}

// EmbeddedRequest carries a block handed over directly by the host.
// The block is updated in place.
type EmbeddedRequest struct {
	Tag   uint32
	Block []byte
}

// ReferencedRequest points at a block inside a shared region
type ReferencedRequest struct {
	Region region.ID
	Offset int64
}

// TimerTick is posted when the reconnect timer fires
type TimerTick struct{}

// RestartRequested drops the connection and reconnects. Path is set for unix socket
// endpoints, Host and Port for TCP. The zero value keeps the current endpoint.
type RestartRequested struct {
	Host string
	Port int
	Path string
}

// ShutdownRequested stops the loop
type ShutdownRequested struct{}

// StatusRequested asks for a status line
type StatusRequested struct{}

func (EmbeddedRequest) event()   {}
func (ReferencedRequest) event() {}
func (TimerTick) event()         {}
func (RestartRequested) event()  {}
func (ShutdownRequested) event() {}
func (StatusRequested) event()   {}

// ParseRestart builds a RestartRequested for the named line transport. The unix
// transport expects a socket path, tcp expects "host:port". The empty string keeps
// the current endpoint.
func ParseRestart(transport, endpoint string) (RestartRequested, error) {
	if endpoint == "" {
		return RestartRequested{}, nil
	}

	if transport == "unix" {
		// a host:port endpoint can not be dialed by the unix transport
		if _, port, err := net.SplitHostPort(endpoint); err == nil && !strings.Contains(endpoint, "/") {
			if _, err := strconv.Atoi(port); err == nil {
				return RestartRequested{}, fmt.Errorf("%w: endpoint %q: unix transport expects a socket path", ErrInvalidRequest, endpoint)
			}
		}
		return RestartRequested{Path: filepath.Clean(endpoint)}, nil
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return RestartRequested{}, fmt.Errorf("%w: endpoint %q: %v", ErrInvalidRequest, endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 0xFFFF {
		return RestartRequested{}, fmt.Errorf("%w: endpoint %q: invalid port", ErrInvalidRequest, endpoint)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return RestartRequested{Host: host, Port: port}, nil
}

// Endpoint returns the socket path or host:port, "" if the current endpoint should be kept
func (r RestartRequested) Endpoint() string {
	if r.Path != "" {
		return r.Path
	}
	if r.Host == "" && r.Port == 0 {
		return ""
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

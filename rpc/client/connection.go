package client

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var connLogger = logger.GetLogger("conn")

var (
	connectAttemptCounter = metrics.NewCounter(`ubridge_reconnect_attempts_total`)
	connectFailureCounter = metrics.NewCounter(`ubridge_connect_failures_total`)
	connectionLostCounter = metrics.NewCounter(`ubridge_connection_lost_total`)
)

// --------------------------------------------------------------------------
// Connection states
// --------------------------------------------------------------------------

// State is the state of the connection to the answering service
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Status is a snapshot of the connection for display
type Status struct {
	State     State
	Endpoint  string
	Since     time.Time // time of the last transition to State
	Failures  uint64    // failed attempts since the last successful connect
	LastError error
	NextRetry time.Time // zero unless the reconnect timer is armed
}

// String returns a single human readable status line
func (s Status) String() string {
	switch s.State {
	case Connected:
		return fmt.Sprintf("connected to %s since %s", s.Endpoint, s.Since.Format(time.TimeOnly))
	default:
		line := fmt.Sprintf("%s from %s", s.State, s.Endpoint)
		if s.Failures > 0 {
			line += fmt.Sprintf(", %d failed attempts", s.Failures)
		}
		if s.LastError != nil {
			line += fmt.Sprintf(", last error: %v", s.LastError)
		}
		if !s.NextRetry.IsZero() {
			line += fmt.Sprintf(", next attempt in %s", time.Until(s.NextRetry).Round(time.Millisecond))
		}
		return line
	}
}

// --------------------------------------------------------------------------
// Connection state machine
// --------------------------------------------------------------------------

// Connection drives the single connection to the answering service through
// Disconnected -> Connecting -> Connected and back on any failure.
// While disconnected a reconnect timer is armed, the owner has to call Tick
// whenever TimerC fires.
//
// Connection is not safe for concurrent use, it is owned by the bridge loop.
type Connection struct {
	transport transport.ILineClientTransport
	config    common.ClientConfig
	policy    backoff.BackOff

	state     State
	since     time.Time
	failures  uint64
	lastErr   error
	timer     *time.Timer
	nextRetry time.Time
}

// NewConnection creates a disconnected connection. Nothing is dialed until Ensure,
// Tick or Restart is called.
func NewConnection(t transport.ILineClientTransport, config common.ClientConfig, policy backoff.BackOff) *Connection {
	if policy == nil {
		policy = NewReconnectPolicy(time.Second, 0)
	}
	return &Connection{
		transport: t,
		config:    config,
		policy:    policy,
		state:     Disconnected,
		since:     time.Now(),
	}
}

// Ensure returns nil if the connection is up, otherwise one connect attempt is made
func (c *Connection) Ensure() error {
	if c.state == Connected && c.transport.IsConnected() {
		return nil
	}
	return c.attempt()
}

// RoundTrip sends one line over the live connection. Any error tears the
// connection down and arms the reconnect timer.
func (c *Connection) RoundTrip(line []byte) ([]byte, error) {
	if err := c.Ensure(); err != nil {
		return nil, err
	}
	reply, err := c.transport.RoundTrip(line)
	if err != nil {
		return nil, c.Fail(err)
	}
	return reply, nil
}

// Fail tears the connection down after err and arms the reconnect timer.
// It returns err for convenience.
func (c *Connection) Fail(err error) error {
	if closeErr := c.transport.Close(); closeErr != nil {
		connLogger.Debugf("closing connection to %s: %v", c.config.Transport.Endpoint, closeErr)
	}

	if c.state == Connected {
		connectionLostCounter.Inc()
		connLogger.Warningf("connection to %s lost: %v", c.config.Transport.Endpoint, err)
	}
	c.transition(Disconnected)
	c.lastErr = err

	if c.timer == nil {
		c.schedule()
	}
	return err
}

// Tick handles an expired reconnect timer
func (c *Connection) Tick() {
	c.timer = nil
	c.nextRetry = time.Time{}

	if c.state == Connected {
		return
	}
	_ = c.attempt()
}

// Restart drops the current connection, cancels the timer and makes one immediate
// attempt. A non-empty endpoint replaces the configured one.
func (c *Connection) Restart(endpoint string) error {
	c.stopTimer()
	if err := c.transport.Close(); err != nil {
		connLogger.Debugf("closing connection to %s: %v", c.config.Transport.Endpoint, err)
	}
	c.transition(Disconnected)

	if endpoint != "" {
		c.config.Transport.Endpoint = endpoint
	}
	c.failures = 0
	c.lastErr = nil
	c.policy.Reset()

	connLogger.Infof("restarting connection to %s", c.config.Transport.Endpoint)
	return c.attempt()
}

// Close drops the connection and cancels the timer for good
func (c *Connection) Close() error {
	c.stopTimer()
	err := c.transport.Close()
	c.transition(Disconnected)
	return err
}

// TimerC returns the channel of the reconnect timer, nil if no timer is armed.
// Receiving from a nil channel blocks forever, so it can be used in a select as is.
func (c *Connection) TimerC() <-chan time.Time {
	if c.timer == nil {
		return nil
	}
	return c.timer.C
}

// State returns the current state
func (c *Connection) State() State {
	return c.state
}

// Endpoint returns the configured endpoint
func (c *Connection) Endpoint() string {
	return c.config.Transport.Endpoint
}

// Status returns a snapshot for display
func (c *Connection) Status() Status {
	return Status{
		State:     c.state,
		Endpoint:  c.config.Transport.Endpoint,
		Since:     c.since,
		Failures:  c.failures,
		LastError: c.lastErr,
		NextRetry: c.nextRetry,
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// attempt makes one connect attempt, on failure the reconnect timer is armed
func (c *Connection) attempt() error {
	c.stopTimer()

	// never dial while a socket is still open
	if c.transport.IsConnected() {
		_ = c.transport.Close()
	}

	c.transition(Connecting)
	connectAttemptCounter.Inc()

	if err := c.transport.Connect(c.config); err != nil {
		connectFailureCounter.Inc()
		c.failures++
		c.lastErr = err
		c.transition(Disconnected)
		c.schedule()
		connLogger.Warningf("connect to %s failed (attempt %d, retry in %s): %v",
			c.config.Transport.Endpoint, c.failures, time.Until(c.nextRetry).Round(time.Millisecond), err)
		return err
	}

	c.failures = 0
	c.lastErr = nil
	c.policy.Reset()
	c.transition(Connected)
	return nil
}

// schedule arms the reconnect timer with the next delay of the policy
func (c *Connection) schedule() {
	c.stopTimer()
	d := nextDelay(c.policy)
	c.timer = time.NewTimer(d)
	c.nextRetry = time.Now().Add(d)
}

func (c *Connection) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.nextRetry = time.Time{}
}

func (c *Connection) transition(to State) {
	if c.state == to {
		return
	}
	connLogger.Debugf("%s -> %s (%s)", c.state, to, c.config.Transport.Endpoint)
	if to == Connected {
		connLogger.Infof("connected to %s", c.config.Transport.Endpoint)
	}
	c.state = to
	c.since = time.Now()
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/lib/region"
	"github.com/ValentinKolb/uBridge/rpc/client"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var Logger = logger.GetLogger("bridge")

// Option configures a Bridge
type Option func(*Bridge)

// OnRestart registers fn to be called with the new endpoint after a restart that
// replaced the endpoint, e.g. to persist it
func OnRestart(fn func(endpoint string)) Option {
	return func(b *Bridge) {
		b.onRestart = fn
	}
}

// WithTransport names the line transport of the connection ("tcp" or "unix"), it
// decides how restart endpoints are parsed. The default is "tcp".
func WithTransport(name string) Option {
	return func(b *Bridge) {
		b.transport = name
	}
}

type result struct {
	payload []byte
	err     error
}

type envelope struct {
	event Event
	reply chan result
}

// Bridge is the bridge context. It owns the connection and the region mapping, both
// are only touched by the loop started with Run.
type Bridge struct {
	conn       *client.Connection
	regions    *region.Manager
	dispatcher *Dispatcher
	onRestart  func(endpoint string)
	transport  string

	queue    chan envelope
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a bridge. Nothing happens until Run is called.
func New(forwarder *client.Forwarder, regions *region.Manager, opts ...Option) *Bridge {
	b := &Bridge{
		conn:       forwarder.Connection(),
		regions:    regions,
		dispatcher: NewDispatcher(forwarder, regions),
		queue:      make(chan envelope),
		stopped:    make(chan struct{}),
		transport:  "tcp",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes events one at a time until a ShutdownRequested is handled or ctx is
// done. The connection and the region are released before Run returns.
// Run must only be called once.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.teardown()

	// the first connect attempt is made right away, failures arm the reconnect timer
	if err := b.conn.Ensure(); err != nil {
		Logger.Warningf("answering service not reachable yet: %v", err)
	}

	Logger.Infof("bridge loop started")
	for {
		select {
		case <-ctx.Done():
			Logger.Infof("bridge loop cancelled")
			return ctx.Err()

		case <-b.conn.TimerC():
			_, _ = b.handle(TimerTick{})

		case env := <-b.queue:
			payload, err := b.handle(env.event)
			env.reply <- result{payload: payload, err: err}
			if _, ok := env.event.(ShutdownRequested); ok {
				Logger.Infof("bridge loop stopped")
				return nil
			}
		}
	}
}

// Submit posts ev into the loop and waits until it was processed
func (b *Bridge) Submit(ev Event) ([]byte, error) {
	env := envelope{event: ev, reply: make(chan result, 1)}
	select {
	case b.queue <- env:
	case <-b.stopped:
		return nil, ErrShutdown
	}
	// once accepted the loop always answers before it stops
	r := <-env.reply
	return r.payload, r.err
}

// Done is closed once the loop has stopped
func (b *Bridge) Done() <-chan struct{} {
	return b.stopped
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IBridge)
// --------------------------------------------------------------------------

func (b *Bridge) Embedded(tag uint32, block []byte) ([]byte, error) {
	return b.Submit(EmbeddedRequest{Tag: tag, Block: block})
}

func (b *Bridge) Referenced(id uint32, offset int64) error {
	_, err := b.Submit(ReferencedRequest{Region: region.ID(id), Offset: offset})
	return err
}

func (b *Bridge) Restart(endpoint string) error {
	ev, err := ParseRestart(b.transport, endpoint)
	if err != nil {
		return err
	}
	_, err = b.Submit(ev)
	return err
}

func (b *Bridge) Status() (string, error) {
	status, err := b.Submit(StatusRequested{})
	return string(status), err
}

func (b *Bridge) Shutdown() error {
	_, err := b.Submit(ShutdownRequested{})
	if errors.Is(err, ErrShutdown) {
		return nil
	}
	return err
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// handle processes one event, it is only called from the loop
func (b *Bridge) handle(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case EmbeddedRequest:
		if err := b.dispatcher.Embedded(e.Block, e.Tag); err != nil {
			Logger.Debugf("embedded request (tag 0x%X, %d bytes) failed: %v", e.Tag, len(e.Block), err)
			return nil, err
		}
		return e.Block, nil

	case ReferencedRequest:
		if err := b.dispatcher.Referenced(e.Region, e.Offset); err != nil {
			Logger.Debugf("referenced request (region 0x%04X, offset 0x%X) failed: %v", uint32(e.Region), e.Offset, err)
			return nil, err
		}
		return nil, nil

	case TimerTick:
		b.conn.Tick()
		return nil, nil

	case RestartRequested:
		endpoint := e.Endpoint()
		err := b.conn.Restart(endpoint)
		if endpoint != "" && b.onRestart != nil {
			b.onRestart(endpoint)
		}
		if err != nil {
			return nil, fmt.Errorf("restart: %w", err)
		}
		return nil, nil

	case StatusRequested:
		return []byte(b.status()), nil

	case ShutdownRequested:
		Logger.Infof("shutdown requested")
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unsupported event %T", ErrInvalidRequest, ev)
	}
}

func (b *Bridge) status() string {
	s := b.conn.Status().String()
	if id, ok := b.regions.Active(); ok {
		return fmt.Sprintf("%s, region 0x%04X mapped", s, uint32(id))
	}
	return s + ", no region mapped"
}

// teardown releases the connection and the region and stops accepting events
func (b *Bridge) teardown() {
	b.stopOnce.Do(func() { close(b.stopped) })

	if err := b.conn.Close(); err != nil {
		Logger.Debugf("closing connection: %v", err)
	}
	if err := b.regions.Close(); err != nil {
		Logger.Warningf("releasing region: %v", err)
	}
}

package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/codewire/internal/observability"
	"github.com/danmuck/codewire/internal/protocol"
	"github.com/danmuck/codewire/internal/protocol/packet"
)

// Client is the tool side of a connection. One goroutine owns all reads
// from conn; writers go through the shared wire and may be called from
// any goroutine.
type Client struct {
	cfg  Config
	conn io.ReadWriteCloser
	r    io.Reader
	wire *wire
	ids  IDCounter
	log  zerolog.Logger

	mu       sync.Mutex
	pending  map[int32]chan error
	events   map[int32]chan packet.Packet
	readErr  error
	poisoned bool

	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
}

// NewClient wraps an established connection and starts the read loop.
// Callers usually want Dial instead.
func NewClient(conn io.ReadWriteCloser, cfg Config) *Client {
	c := &Client{
		cfg:     cfg.WithDefaults(),
		conn:    conn,
		r:       meteredRead{r: conn},
		wire:    newWire(conn),
		log:     observability.Component("rpc.client"),
		pending: make(map[int32]chan error),
		events:  make(map[int32]chan packet.Packet),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// WaitReady blocks until the host announces itself or the session dies.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return c.sessionErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call issues a promise request and blocks until the host resolves or
// rejects it. Rejections surface as *RemoteError or *RemoteObjectError.
// Cancelling ctx sends a cancel request and returns ctx.Err(); the host
// may still complete the call, in which case the late response is
// dropped.
func (c *Client) Call(ctx context.Context, channel, method string, arg packet.Packet) error {
	id := c.ids.Next()
	result := make(chan error, 1)

	c.mu.Lock()
	if c.poisoned {
		err := c.readErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = result
	c.mu.Unlock()

	msg := protocol.RequestPromise{ID: id, Channel: channel, Method: method, Arg: arg}
	if err := c.wire.send(msg); err != nil {
		c.dropPending(id)
		return err
	}

	select {
	case err := <-result:
		return err
	case <-c.done:
		return c.sessionErr()
	case <-ctx.Done():
		c.dropPending(id)
		if err := c.wire.send(protocol.RequestPromiseCancel{ID: id}); err != nil {
			c.log.Debug().Err(err).Int32("id", id).Msg("cancel send failed")
		}
		return ctx.Err()
	}
}

// Subscription is one live event stream. Events arrive on C until
// Dispose is called or the session dies, at which point C is closed.
type Subscription struct {
	ID int32
	C  <-chan packet.Packet

	once    sync.Once
	dispose func()
}

func (s *Subscription) Dispose() {
	s.once.Do(s.dispose)
}

// Listen subscribes to a named event on a channel.
func (c *Client) Listen(channel, event string, arg packet.Packet) (*Subscription, error) {
	id := c.ids.Next()
	ch := make(chan packet.Packet, c.cfg.EventBuffer)

	c.mu.Lock()
	if c.poisoned {
		err := c.readErr
		c.mu.Unlock()
		return nil, err
	}
	c.events[id] = ch
	c.mu.Unlock()

	msg := protocol.RequestEventListen{ID: id, Channel: channel, Event: event, Arg: arg}
	if err := c.wire.send(msg); err != nil {
		c.dropEvent(id)
		return nil, err
	}

	sub := &Subscription{ID: id, C: ch}
	sub.dispose = func() {
		if c.dropEvent(id) {
			if err := c.wire.send(protocol.RequestEventDispose{ID: id}); err != nil {
				c.log.Debug().Err(err).Int32("id", id).Msg("dispose send failed")
			}
		}
	}
	return sub, nil
}

// Close tears down the connection. Outstanding calls fail with
// ErrSessionClosed.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		msg, err := protocol.DecodeMessage(c.r, c.cfg.Limits)
		if err != nil {
			c.poison(err)
			return
		}
		observability.RecordWireMessage("in", msg.Tag())

		switch m := msg.(type) {
		case protocol.ResponseInitialize:
			c.readyOnce.Do(func() { close(c.ready) })
		case protocol.ResponsePromiseSuccess:
			c.complete(m.ID, nil)
		case protocol.ResponsePromiseError:
			c.complete(m.ID, &RemoteError{
				Name:    m.Err.Name,
				Message: m.Err.Message,
				Stack:   m.Err.Stack,
			})
		case protocol.ResponsePromiseErrorObject:
			c.complete(m.ID, &RemoteObjectError{Data: m.Data})
		case protocol.ResponseEventFired:
			c.deliver(m.ID, m.Data)
		default:
			c.log.Warn().Int32("tag", msg.Tag()).Msg("request message on client side, dropped")
		}
	}
}

func (c *Client) complete(id int32, err error) {
	c.mu.Lock()
	if result, ok := c.pending[id]; ok {
		delete(c.pending, id)
		c.mu.Unlock()
		result <- err
		return
	}
	// A rejection can also target a subscription: the host refuses a
	// listen with the same error response it uses for promises. Closing
	// the stream is the listener's signal. Close under the lock; see
	// deliver.
	if ch, ok := c.events[id]; ok {
		delete(c.events, id)
		close(ch)
		c.mu.Unlock()
		if err != nil {
			c.log.Warn().Err(err).Int32("id", id).Msg("subscription rejected")
		}
		return
	}
	c.mu.Unlock()
	c.log.Debug().Int32("id", id).Msg("response for unknown call, dropped")
}

func (c *Client) deliver(id int32, data packet.Packet) {
	// The send stays under the lock: every path that closes an event
	// channel removes it from the map under the same lock first, so a
	// channel reachable here cannot be closed mid-send.
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.events[id]
	if !ok {
		c.log.Debug().Int32("id", id).Msg("event for disposed subscription, dropped")
		return
	}
	select {
	case ch <- data:
	default:
		c.log.Warn().Int32("id", id).Msg("event buffer full, dropped")
	}
}

func (c *Client) dropPending(id int32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) dropEvent(id int32) bool {
	c.mu.Lock()
	ch, ok := c.events[id]
	delete(c.events, id)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
	return ok
}

// poison fails every outstanding call and subscription. Runs once, from
// the read goroutine, when the transport dies.
func (c *Client) poison(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		err = ErrSessionClosed
	}
	c.mu.Lock()
	c.poisoned = true
	c.readErr = err
	pending := c.pending
	events := c.events
	c.pending = make(map[int32]chan error)
	c.events = make(map[int32]chan packet.Packet)
	c.mu.Unlock()

	for _, result := range pending {
		result <- err
	}
	for _, ch := range events {
		close(ch)
	}
	close(c.done)
	if !errors.Is(err, ErrSessionClosed) {
		c.log.Warn().Err(err).Msg("session failed")
	}
}

func (c *Client) sessionErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return ErrSessionClosed
}

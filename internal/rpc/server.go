package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/codewire/internal/observability"
	"github.com/danmuck/codewire/internal/protocol"
	"github.com/danmuck/codewire/internal/protocol/packet"
)

// PromiseHandler services one promise call. A nil return resolves the
// promise; an error rejects it. ctx is cancelled if the peer sends a
// cancel request for the call.
type PromiseHandler func(ctx context.Context, arg packet.Packet) error

// EventHandler services one event subscription. It should emit until
// ctx is cancelled, which happens on dispose or connection teardown.
type EventHandler func(ctx context.Context, arg packet.Packet, emit func(packet.Packet))

// Channel groups the promise methods and event sources exposed under
// one channel name.
type Channel struct {
	promises map[string]PromiseHandler
	events   map[string]EventHandler
}

func NewChannel() *Channel {
	return &Channel{
		promises: make(map[string]PromiseHandler),
		events:   make(map[string]EventHandler),
	}
}

func (ch *Channel) Promise(name string, h PromiseHandler) *Channel {
	ch.promises[name] = h
	return ch
}

func (ch *Channel) Event(name string, h EventHandler) *Channel {
	ch.events[name] = h
	return ch
}

// Server is the host side. Register channels before serving; the
// registry is read-only once connections are live.
type Server struct {
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg:      cfg.WithDefaults(),
		log:      observability.Component("rpc.server"),
		channels: make(map[string]*Channel),
	}
}

func (s *Server) Register(name string, ch *Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	s.channels[name] = ch
	return nil
}

func (s *Server) lookup(name string) (*Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	return ch, ok
}

// session is the per-connection serving state: the write half and the
// cancel functions for in-flight calls and live subscriptions.
type session struct {
	wire *wire
	log  zerolog.Logger

	mu      sync.Mutex
	cancels map[int32]context.CancelFunc
}

// Serve drives one connection until the peer hangs up, the transport
// fails, or ctx is cancelled. A clean peer disconnect returns nil.
func (s *Server) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	observability.SessionOpened()
	defer observability.SessionClosed()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sess := &session{
		wire:    newWire(conn),
		log:     s.log,
		cancels: make(map[int32]context.CancelFunc),
	}
	defer sess.cancelAll()

	if err := sess.wire.send(protocol.ResponseInitialize{}); err != nil {
		return err
	}

	r := meteredRead{r: conn}
	for {
		msg, err := protocol.DecodeMessage(r, s.cfg.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			observability.RecordDecodeError(decodeReason(err))
			return err
		}
		observability.RecordWireMessage("in", msg.Tag())

		switch m := msg.(type) {
		case protocol.RequestPromise:
			s.servePromise(ctx, sess, m)
		case protocol.RequestPromiseCancel:
			sess.cancelID(m.ID)
		case protocol.RequestEventListen:
			s.serveListen(ctx, sess, m)
		case protocol.RequestEventDispose:
			sess.cancelID(m.ID)
		default:
			s.log.Warn().Int32("tag", msg.Tag()).Msg("response message on host side, dropped")
		}
	}
}

func (s *Server) servePromise(ctx context.Context, sess *session, m protocol.RequestPromise) {
	h, err := s.lookupPromise(m.Channel, m.Method)
	if err != nil {
		sess.reject(m.ID, err)
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	sess.track(m.ID, cancel)

	go func() {
		defer sess.untrack(m.ID)
		if err := h(callCtx, m.Arg); err != nil {
			if callCtx.Err() != nil {
				// Cancelled by the peer; it no longer wants an answer.
				return
			}
			sess.reject(m.ID, err)
			return
		}
		if err := sess.wire.send(protocol.ResponsePromiseSuccess{ID: m.ID}); err != nil {
			sess.log.Debug().Err(err).Int32("id", m.ID).Msg("success send failed")
		}
	}()
}

func (s *Server) serveListen(ctx context.Context, sess *session, m protocol.RequestEventListen) {
	h, err := s.lookupEvent(m.Channel, m.Event)
	if err != nil {
		sess.reject(m.ID, err)
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	sess.track(m.ID, cancel)

	emit := func(data packet.Packet) {
		if subCtx.Err() != nil {
			return
		}
		if err := sess.wire.send(protocol.ResponseEventFired{ID: m.ID, Data: data}); err != nil {
			sess.log.Debug().Err(err).Int32("id", m.ID).Msg("event send failed")
		}
	}
	go func() {
		defer sess.untrack(m.ID)
		h(subCtx, m.Arg, emit)
	}()
}

func (s *Server) lookupPromise(channel, method string) (PromiseHandler, error) {
	ch, ok := s.lookup(channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}
	h, ok := ch.promises[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, channel, method)
	}
	return h, nil
}

func (s *Server) lookupEvent(channel, event string) (EventHandler, error) {
	ch, ok := s.lookup(channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}
	h, ok := ch.events[event]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrEventNotFound, channel, event)
	}
	return h, nil
}

func (sess *session) reject(id int32, err error) {
	msg := protocol.ResponsePromiseError{
		ID: id,
		Err: protocol.PromiseErrorData{
			Message: err.Error(),
			Name:    "Error",
		},
	}
	if sendErr := sess.wire.send(msg); sendErr != nil {
		sess.log.Debug().Err(sendErr).Int32("id", id).Msg("error send failed")
	}
}

func (sess *session) track(id int32, cancel context.CancelFunc) {
	sess.mu.Lock()
	sess.cancels[id] = cancel
	sess.mu.Unlock()
}

func (sess *session) untrack(id int32) {
	sess.mu.Lock()
	cancel, ok := sess.cancels[id]
	delete(sess.cancels, id)
	sess.mu.Unlock()
	if ok {
		cancel()
	}
}

func (sess *session) cancelID(id int32) {
	sess.mu.Lock()
	cancel, ok := sess.cancels[id]
	sess.mu.Unlock()
	if ok {
		cancel()
	} else {
		sess.log.Debug().Int32("id", id).Msg("cancel for unknown id, dropped")
	}
}

func (sess *session) cancelAll() {
	sess.mu.Lock()
	cancels := sess.cancels
	sess.cancels = make(map[int32]context.CancelFunc)
	sess.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownMessageTag):
		return "unknown_tag"
	case errors.Is(err, protocol.ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, packet.ErrUnexpectedType):
		return "unexpected_type"
	case errors.Is(err, packet.ErrTooLarge), errors.Is(err, packet.ErrTooManyItems), errors.Is(err, packet.ErrTooDeep):
		return "limit"
	default:
		return "io"
	}
}

// Package subscription implements the per-connection event delivery
// protocol: a handshake followed by strictly alternating event and
// acknowledgment messages. At most one event is ever in flight per session;
// the next event is pulled from the dispatcher only after the previous one
// is acknowledged, which is the protocol's backpressure mechanism.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-ledger/gateway/internal/events"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
)

var (
	// ErrProtocolViolation indicates the client sent a message the state
	// machine does not permit. Fatal to the session only.
	ErrProtocolViolation = errors.New("subscription protocol violation")
	// ErrAckTimeout indicates the client failed to acknowledge the
	// in-flight event in time.
	ErrAckTimeout = errors.New("event acknowledgment timed out")
	// ErrDispatcherClosed indicates the event source terminated, either
	// on shutdown or because this subscriber lagged past its buffer.
	ErrDispatcherClosed = errors.New("event dispatcher closed subscription")
)

// Conn abstracts the bidirectional message channel so the session logic is
// testable without a live websocket.
type Conn interface {
	ReadMessage() (Message, error)
	WriteMessage(Message) error
	Close() error
}

// Session drives one subscriber connection through the protocol state
// machine. A session is owned by its connection's lifecycle and is never
// reused.
type Session struct {
	id         uuid.UUID
	conn       Conn
	dispatcher events.Dispatcher
	ackTimeout time.Duration
	log        *logging.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	state    State
	inFlight *events.Event
}

// NewSession creates a session in AwaitingHandshake. The metrics handle may
// be nil.
func NewSession(conn Conn, dispatcher events.Dispatcher, ackTimeout time.Duration, log *logging.Logger, m *metrics.Metrics) *Session {
	id := uuid.New()
	return &Session{
		id:         id,
		conn:       conn,
		dispatcher: dispatcher,
		ackTimeout: ackTimeout,
		log:        log.WithField("session_id", id.String()),
		metrics:    m,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State reports the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports the delivered-but-unacknowledged event, if any.
func (s *Session) InFlight() *events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) setInFlight(e *events.Event) {
	s.mu.Lock()
	s.inFlight = e
	s.mu.Unlock()
}

func (s *Session) transition(in input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := nextState(s.state, in)
	if err != nil {
		s.state = StateClosed
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	s.state = next
	return nil
}

// Run executes the session until the connection closes, the context is
// canceled or the protocol is violated. The connection is closed and all
// session resources are released before it returns; a client that
// reconnects starts over with a fresh handshake.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateAwaitingHandshake
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateClosed
		s.inFlight = nil
		s.mu.Unlock()
		s.conn.Close()
	}()

	msgCh := make(chan Message)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Reader pump. Closing the connection unblocks the pending read.
	go func() {
		for {
			msg, err := s.conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- msg:
			case <-done:
				return
			}
		}
	}()

	sub, err := s.handshake(ctx, msgCh, errCh)
	if err != nil {
		return err
	}
	defer sub.Close()

	return s.deliverLoop(ctx, sub, msgCh, errCh)
}

func (s *Session) handshake(ctx context.Context, msgCh <-chan Message, errCh <-chan error) (*events.Subscription, error) {
	var msg Message
	select {
	case msg = <-msgCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if msg.Type != MessageTypeSubscriptionRequest {
		return nil, fmt.Errorf("%w: expected %s, got %s",
			ErrProtocolViolation, MessageTypeSubscriptionRequest, msg.Type)
	}

	var filter events.Filter
	if msg.Filter != nil {
		filter = *msg.Filter
	}
	sub, err := s.dispatcher.Subscribe(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	if err := s.conn.WriteMessage(Message{Type: MessageTypeSubscriptionAccepted}); err != nil {
		sub.Close()
		return nil, err
	}
	if err := s.transition(inputHandshake); err != nil {
		sub.Close()
		return nil, err
	}
	s.log.Debug("subscription accepted")
	return sub, nil
}

func (s *Session) deliverLoop(ctx context.Context, sub *events.Subscription, msgCh <-chan Message, errCh <-chan error) error {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return ErrDispatcherClosed
			}
			if err := s.deliver(ctx, ev, msgCh, errCh); err != nil {
				return err
			}

		case <-msgCh:
			// The client must not speak while no event is in flight.
			return fmt.Errorf("%w: unexpected message while ready", ErrProtocolViolation)

		case err := <-errCh:
			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// deliver sends one event and blocks until it is acknowledged. No further
// event is taken from the dispatcher during the wait.
func (s *Session) deliver(ctx context.Context, ev events.Event, msgCh <-chan Message, errCh <-chan error) error {
	if err := s.transition(inputDeliver); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(Message{Type: MessageTypeEvent, Event: &ev}); err != nil {
		return err
	}
	if err := s.transition(inputSent); err != nil {
		return err
	}
	s.setInFlight(&ev)

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	select {
	case msg := <-msgCh:
		if msg.Type != MessageTypeEventReceived {
			return fmt.Errorf("%w: expected %s, got %s",
				ErrProtocolViolation, MessageTypeEventReceived, msg.Type)
		}
		if msg.Sequence != ev.Sequence {
			return fmt.Errorf("%w: acknowledgment for sequence %d, in-flight is %d",
				ErrProtocolViolation, msg.Sequence, ev.Sequence)
		}
		if err := s.transition(inputAck); err != nil {
			return err
		}
		s.setInFlight(nil)
		if s.metrics != nil {
			s.metrics.EventDelivered()
		}
		return nil

	case err := <-errCh:
		return err

	case <-timer.C:
		return ErrAckTimeout

	case <-ctx.Done():
		return ctx.Err()
	}
}

package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
)

// BlockSession streams committed blocks to one connection, in height order
// starting from the height named in the handshake. Delivery follows the same
// strict alternation as the event channel: exactly one block in flight, the
// next one sent only after the previous height is acknowledged. A session
// that reaches the chain tip parks until the next block is committed.
type BlockSession struct {
	id         uuid.UUID
	conn       Conn
	store      *blocks.Store
	ackTimeout time.Duration
	log        *logging.Logger
	metrics    *metrics.Metrics

	mu    sync.Mutex
	state State
	next  uint64
}

// NewBlockSession creates a block session in AwaitingHandshake. The metrics
// handle may be nil.
func NewBlockSession(conn Conn, store *blocks.Store, ackTimeout time.Duration, log *logging.Logger, m *metrics.Metrics) *BlockSession {
	id := uuid.New()
	return &BlockSession{
		id:         id,
		conn:       conn,
		store:      store,
		ackTimeout: ackTimeout,
		log:        log.WithField("session_id", id.String()),
		metrics:    m,
	}
}

// ID returns the session identifier.
func (s *BlockSession) ID() uuid.UUID { return s.id }

// State reports the current protocol state.
func (s *BlockSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextHeight reports the height of the next block to deliver.
func (s *BlockSession) NextHeight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *BlockSession) setNext(h uint64) {
	s.mu.Lock()
	s.next = h
	s.mu.Unlock()
}

func (s *BlockSession) transition(in input) error {
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
// canceled or the protocol is violated. The connection is closed before it
// returns.
func (s *BlockSession) Run(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateAwaitingHandshake
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateClosed
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

	if err := s.handshake(ctx, msgCh, errCh); err != nil {
		return err
	}
	return s.streamLoop(ctx, msgCh, errCh)
}

func (s *BlockSession) handshake(ctx context.Context, msgCh <-chan Message, errCh <-chan error) error {
	var msg Message
	select {
	case msg = <-msgCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	if msg.Type != MessageTypeBlockSubscriptionRequest {
		return fmt.Errorf("%w: expected %s, got %s",
			ErrProtocolViolation, MessageTypeBlockSubscriptionRequest, msg.Type)
	}

	from := msg.FromHeight
	if from == 0 {
		from = 1
	}
	if err := s.conn.WriteMessage(Message{Type: MessageTypeBlockSubscriptionAccepted}); err != nil {
		return err
	}
	if err := s.transition(inputHandshake); err != nil {
		return err
	}
	s.setNext(from)
	s.log.Debug("block subscription accepted")
	return nil
}

func (s *BlockSession) streamLoop(ctx context.Context, msgCh <-chan Message, errCh <-chan error) error {
	for {
		// Take the wakeup channel before the lookup so an append between
		// the failed lookup and the wait is not missed.
		updated := s.store.Updated()
		block, ok := s.store.Get(s.NextHeight())
		if !ok {
			select {
			case <-updated:
				continue

			case <-msgCh:
				// The client must not speak while no block is in flight.
				return fmt.Errorf("%w: unexpected message while ready", ErrProtocolViolation)

			case err := <-errCh:
				return err

			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.deliver(ctx, block, msgCh, errCh); err != nil {
			return err
		}
	}
}

// deliver sends one block and blocks until its height is acknowledged.
func (s *BlockSession) deliver(ctx context.Context, b blocks.Block, msgCh <-chan Message, errCh <-chan error) error {
	if err := s.transition(inputDeliver); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(Message{Type: MessageTypeBlock, Block: &b}); err != nil {
		return err
	}
	if err := s.transition(inputSent); err != nil {
		return err
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	select {
	case msg := <-msgCh:
		if msg.Type != MessageTypeBlockReceived {
			return fmt.Errorf("%w: expected %s, got %s",
				ErrProtocolViolation, MessageTypeBlockReceived, msg.Type)
		}
		if msg.Height != b.Height {
			return fmt.Errorf("%w: acknowledgment for height %d, in-flight is %d",
				ErrProtocolViolation, msg.Height, b.Height)
		}
		if err := s.transition(inputAck); err != nil {
			return err
		}
		s.setNext(b.Height + 1)
		if s.metrics != nil {
			s.metrics.BlockDelivered()
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

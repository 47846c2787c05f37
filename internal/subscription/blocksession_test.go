package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/logging"
)

func startBlockSession(t *testing.T, store *blocks.Store, ackTimeout time.Duration) (*fakeConn, *BlockSession, chan error) {
	t.Helper()
	conn := newFakeConn()
	sess := NewBlockSession(conn, store, ackTimeout, logging.NewNop(), nil)
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(context.Background()) }()
	return conn, sess, errCh
}

func blockHandshake(t *testing.T, conn *fakeConn, fromHeight uint64) {
	t.Helper()
	conn.send(t, Message{Type: MessageTypeBlockSubscriptionRequest, FromHeight: fromHeight})
	if m := conn.recv(t); m.Type != MessageTypeBlockSubscriptionAccepted {
		t.Fatalf("handshake reply = %s, want %s", m.Type, MessageTypeBlockSubscriptionAccepted)
	}
}

func TestBlockSession_CatchesUpFromHeight(t *testing.T) {
	store := blocks.NewStore(nil)
	store.Append(blocks.Block{Hash: "aa"})
	store.Append(blocks.Block{Hash: "bb"})
	store.Append(blocks.Block{Hash: "cc"})

	conn, sess, errCh := startBlockSession(t, store, time.Minute)
	blockHandshake(t, conn, 2)

	first := conn.recv(t)
	if first.Type != MessageTypeBlock || first.Block.Height != 2 || first.Block.Hash != "bb" {
		t.Fatalf("first delivery = %+v, want block 2", first)
	}

	// The next block must not go on the wire until height 2 is
	// acknowledged.
	conn.expectSilence(t, 100*time.Millisecond)
	if got := sess.State(); got != StateAwaitingAck {
		t.Errorf("state = %s, want %s", got, StateAwaitingAck)
	}

	conn.send(t, Message{Type: MessageTypeBlockReceived, Height: 2})
	second := conn.recv(t)
	if second.Block.Height != 3 || second.Block.Hash != "cc" {
		t.Fatalf("second delivery = %+v, want block 3", second)
	}
	conn.send(t, Message{Type: MessageTypeBlockReceived, Height: 3})

	// Caught up; the session parks until the next commit.
	conn.expectSilence(t, 100*time.Millisecond)
	if got := sess.NextHeight(); got != 4 {
		t.Errorf("next height = %d, want 4", got)
	}

	store.Append(blocks.Block{Hash: "dd"})
	fourth := conn.recv(t)
	if fourth.Block.Height != 4 || fourth.Block.PrevHash != "cc" {
		t.Fatalf("delivery after commit = %+v, want linked block 4", fourth)
	}

	conn.Close()
	waitErr(t, errCh)
}

func TestBlockSession_DefaultsToGenesisHeight(t *testing.T) {
	store := blocks.NewStore(nil)
	store.Append(blocks.Block{Hash: "aa"})

	conn, _, errCh := startBlockSession(t, store, time.Minute)
	blockHandshake(t, conn, 0)

	if m := conn.recv(t); m.Block.Height != 1 {
		t.Fatalf("delivery = %+v, want block 1", m)
	}

	conn.Close()
	waitErr(t, errCh)
}

func TestBlockSession_HandshakeMustBeFirst(t *testing.T) {
	conn, _, errCh := startBlockSession(t, blocks.NewStore(nil), time.Minute)

	conn.send(t, Message{Type: MessageTypeBlockReceived, Height: 1})
	if err := waitErr(t, errCh); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Run() = %v, want ErrProtocolViolation", err)
	}
}

func TestBlockSession_RejectsMessageWhileParked(t *testing.T) {
	conn, sess, errCh := startBlockSession(t, blocks.NewStore(nil), time.Minute)
	blockHandshake(t, conn, 1)

	conn.send(t, Message{Type: MessageTypeBlockReceived, Height: 1})
	if err := waitErr(t, errCh); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Run() = %v, want ErrProtocolViolation", err)
	}
	if got := sess.State(); got != StateClosed {
		t.Errorf("state = %s, want %s", got, StateClosed)
	}
}

func TestBlockSession_RejectsWrongHeightAck(t *testing.T) {
	store := blocks.NewStore(nil)
	store.Append(blocks.Block{Hash: "aa"})

	conn, _, errCh := startBlockSession(t, store, time.Minute)
	blockHandshake(t, conn, 1)

	if m := conn.recv(t); m.Block.Height != 1 {
		t.Fatalf("delivered height = %d, want 1", m.Block.Height)
	}

	conn.send(t, Message{Type: MessageTypeBlockReceived, Height: 99})
	if err := waitErr(t, errCh); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Run() = %v, want ErrProtocolViolation", err)
	}
}

func TestBlockSession_RejectsWrongAckType(t *testing.T) {
	store := blocks.NewStore(nil)
	store.Append(blocks.Block{Hash: "aa"})

	conn, _, errCh := startBlockSession(t, store, time.Minute)
	blockHandshake(t, conn, 1)
	conn.recv(t)

	conn.send(t, Message{Type: MessageTypeEventReceived, Sequence: 1})
	if err := waitErr(t, errCh); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Run() = %v, want ErrProtocolViolation", err)
	}
}

func TestBlockSession_AckTimeout(t *testing.T) {
	store := blocks.NewStore(nil)
	store.Append(blocks.Block{Hash: "aa"})

	conn, _, errCh := startBlockSession(t, store, 50*time.Millisecond)
	blockHandshake(t, conn, 1)
	conn.recv(t)

	if err := waitErr(t, errCh); !errors.Is(err, ErrAckTimeout) {
		t.Errorf("Run() = %v, want ErrAckTimeout", err)
	}
}

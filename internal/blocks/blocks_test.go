package blocks

import (
	"testing"
	"time"

	"github.com/veritas-ledger/gateway/internal/events"
)

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.published = append(p.published, e)
}

func TestStore_AppendAssignsHeightsAndLinks(t *testing.T) {
	s := NewStore(nil)
	if got := s.Height(); got != 0 {
		t.Fatalf("empty height = %d, want 0", got)
	}

	first := s.Append(Block{Hash: "aa"})
	second := s.Append(Block{Hash: "bb"})

	if first.Height != 1 || second.Height != 2 {
		t.Errorf("heights = %d, %d, want 1, 2", first.Height, second.Height)
	}
	if first.PrevHash != "" {
		t.Errorf("genesis prev_hash = %q, want empty", first.PrevHash)
	}
	if second.PrevHash != "aa" {
		t.Errorf("prev_hash = %q, want aa", second.PrevHash)
	}
	if s.Height() != 2 {
		t.Errorf("height = %d, want 2", s.Height())
	}
}

func TestStore_Get(t *testing.T) {
	s := NewStore(nil)
	s.Append(Block{Hash: "aa"})

	if b, ok := s.Get(1); !ok || b.Hash != "aa" {
		t.Errorf("Get(1) = (%+v, %v), want the appended block", b, ok)
	}
	if _, ok := s.Get(0); ok {
		t.Error("Get(0) succeeded, want miss")
	}
	if _, ok := s.Get(2); ok {
		t.Error("Get past the tip succeeded, want miss")
	}
}

func TestStore_AppendPublishesCommitEvent(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStore(pub)
	b := s.Append(Block{Hash: "aa"})

	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	e := pub.published[0]
	if e.Kind != events.KindBlockCommitted || e.Height != b.Height || e.Hash != "aa" {
		t.Errorf("event = %+v, want block_committed for the appended block", e)
	}
}

func TestStore_UpdatedWakesWaiters(t *testing.T) {
	s := NewStore(nil)
	updated := s.Updated()

	select {
	case <-updated:
		t.Fatal("channel closed before any append")
	default:
	}

	s.Append(Block{Hash: "aa"})
	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("append did not close the pending channel")
	}

	// Each append replaces the channel; a fresh one waits for the next.
	select {
	case <-s.Updated():
		t.Fatal("fresh channel already closed")
	default:
	}
}

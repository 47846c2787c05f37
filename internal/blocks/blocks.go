// Package blocks keeps the committed block sequence the gateway serves over
// the block stream websocket. The store is append-only; heights are assigned
// contiguously starting at 1 and every append wakes waiting streams.
package blocks

import (
	"sync"
	"time"

	"github.com/veritas-ledger/gateway/internal/events"
)

// Block is one committed block as served to stream subscribers. The gateway
// does not interpret block contents; transactions are carried as hashes.
type Block struct {
	Height       uint64    `json:"height"`
	Hash         string    `json:"hash"`
	PrevHash     string    `json:"prev_hash,omitempty"`
	Transactions []string  `json:"transactions,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher is notified of every appended block. The event broker satisfies
// it, which keeps the event channel and the block stream in step.
type Publisher interface {
	Publish(events.Event)
}

// Store is the in-memory committed-block sequence.
type Store struct {
	mu      sync.Mutex
	blocks  []Block
	changed chan struct{}
	pub     Publisher
}

// NewStore creates an empty store. The publisher may be nil.
func NewStore(pub Publisher) *Store {
	return &Store{
		changed: make(chan struct{}),
		pub:     pub,
	}
}

// Append commits a block: the store assigns the next height, links the
// previous hash and publishes a block_committed event. The stored block is
// returned.
func (s *Store) Append(b Block) Block {
	s.mu.Lock()
	b.Height = uint64(len(s.blocks)) + 1
	if len(s.blocks) > 0 {
		b.PrevHash = s.blocks[len(s.blocks)-1].Hash
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now()
	}
	s.blocks = append(s.blocks, b)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	if s.pub != nil {
		s.pub.Publish(events.Event{
			Kind:      events.KindBlockCommitted,
			Hash:      b.Hash,
			Height:    b.Height,
			Timestamp: b.Timestamp,
		})
	}
	return b
}

// Height reports the height of the latest committed block, 0 when empty.
func (s *Store) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.blocks))
}

// Get returns the block at the given height.
func (s *Store) Get(height uint64) (Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height == 0 || height > uint64(len(s.blocks)) {
		return Block{}, false
	}
	return s.blocks[height-1], true
}

// Updated returns a channel closed by the next Append. Callers take the
// channel before checking for a block so a concurrent append cannot slip
// between the check and the wait.
func (s *Store) Updated() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Package events defines ledger events and the in-process dispatcher that
// fans them out to subscription sessions. Each subscription observes events
// in publish order with monotonically increasing sequence numbers.
package events

import (
	"fmt"
	"time"
)

// Kind classifies a ledger event.
type Kind string

const (
	// KindTransactionQueued fires when the gateway accepts a transaction
	// into the consensus queue.
	KindTransactionQueued Kind = "transaction_queued"
	// KindTransactionCommitted fires when a queued transaction is applied.
	KindTransactionCommitted Kind = "transaction_committed"
	// KindTransactionRejected fires when consensus rejects a transaction.
	KindTransactionRejected Kind = "transaction_rejected"
	// KindBlockCommitted fires when a block is appended to the chain.
	KindBlockCommitted Kind = "block_committed"
)

var knownKinds = map[Kind]bool{
	KindTransactionQueued:    true,
	KindTransactionCommitted: true,
	KindTransactionRejected:  true,
	KindBlockCommitted:       true,
}

// Event is an immutable ledger occurrence. Sequence numbers are assigned by
// the dispatcher and are strictly increasing within a subscription's scope.
type Event struct {
	Sequence  uint64    `json:"sequence"`
	Kind      Kind      `json:"kind"`
	Origin    string    `json:"origin,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Height    uint64    `json:"height,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter selects the events a subscription wants to observe. Empty fields
// match everything.
type Filter struct {
	Kinds  []Kind `json:"kinds,omitempty"`
	Origin string `json:"origin,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Validate rejects filters naming unknown event kinds.
func (f Filter) Validate() error {
	for _, k := range f.Kinds {
		if !knownKinds[k] {
			return fmt.Errorf("unknown event kind %q", k)
		}
	}
	return nil
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(e Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == e.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Origin != "" && f.Origin != e.Origin {
		return false
	}
	if f.Domain != "" && f.Domain != e.Domain {
		return false
	}
	return true
}

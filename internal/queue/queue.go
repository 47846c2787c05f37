// Package queue holds transactions accepted by the gateway until the
// consensus engine drains them. Entries expire after their time-to-live; a
// background schedule evicts expired entries so the queue cannot grow
// without bound when consensus stalls.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

var (
	// ErrFull indicates the queue reached its configured capacity.
	ErrFull = errors.New("transaction queue is full")
	// ErrDuplicate indicates the transaction hash is already queued.
	ErrDuplicate = errors.New("transaction already queued")
)

type entry struct {
	tx      datamodel.Transaction
	hash    string
	addedAt time.Time
}

// Queue is a bounded FIFO of accepted transactions.
type Queue struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  []entry
	hashes   map[string]struct{}
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a queue with the given capacity and default transaction TTL.
func New(capacity int, ttl time.Duration) *Queue {
	return &Queue{
		capacity: capacity,
		ttl:      ttl,
		hashes:   make(map[string]struct{}),
		now:      time.Now,
	}
}

// StartEviction begins periodic expired-entry eviction on the given cron
// schedule (e.g. "@every 1m").
func (q *Queue) StartEviction(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { q.EvictExpired() }); err != nil {
		return fmt.Errorf("eviction schedule %q: %w", schedule, err)
	}
	c.Start()
	q.mu.Lock()
	q.cron = c
	q.mu.Unlock()
	return nil
}

// Stop halts the eviction schedule.
func (q *Queue) Stop() {
	q.mu.Lock()
	c := q.cron
	q.cron = nil
	q.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}

// Push appends a transaction. Duplicate hashes and a full queue are
// rejected.
func (q *Queue) Push(tx datamodel.Transaction) error {
	hash := tx.HashHex()
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.hashes[hash]; ok {
		return ErrDuplicate
	}
	if len(q.entries) >= q.capacity {
		return ErrFull
	}
	q.entries = append(q.entries, entry{tx: tx, hash: hash, addedAt: q.now()})
	q.hashes[hash] = struct{}{}
	return nil
}

// Pending returns the queued transactions in arrival order, windowed by the
// given pagination.
func (q *Queue) Pending(p datamodel.Pagination) []datamodel.Transaction {
	q.mu.Lock()
	txs := make([]datamodel.Transaction, len(q.entries))
	for i, e := range q.entries {
		txs[i] = e.tx
	}
	q.mu.Unlock()
	return datamodel.Paginate(txs, p)
}

// Len reports the number of queued transactions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// EvictExpired removes entries past their time-to-live and reports how many
// were dropped. A transaction's own TTL applies when it is shorter than the
// queue default.
func (q *Queue) EvictExpired() int {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	evicted := 0
	for _, e := range q.entries {
		ttl := q.ttl
		if txTTL := time.Duration(e.tx.Payload.TTLMS) * time.Millisecond; txTTL > 0 && txTTL < ttl {
			ttl = txTTL
		}
		if now.Sub(e.addedAt) > ttl {
			delete(q.hashes, e.hash)
			evicted++
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return evicted
}

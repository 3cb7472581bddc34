// Package mempool maintains the pool of records waiting to be mined.
package mempool

import (
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Mempool represents a FIFO queue of records that have been submitted but
// not yet mined into a block. The pool is not durable, records still pending
// when the process stops are lost.
type Mempool struct {
	mu    sync.RWMutex
	queue []database.Record
}

// New constructs a new empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of records in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.queue)
}

// Submit appends the record to the tail of the pool and returns the new
// number of records in the pool.
func (mp *Mempool) Submit(record database.Record) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.queue = append(mp.queue, record)

	return len(mp.queue)
}

// Drain removes up to howMany records from the head of the pool. A value of
// zero or less drains everything.
func (mp *Mempool) Drain(howMany int) []database.Record {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if howMany <= 0 || howMany > len(mp.queue) {
		howMany = len(mp.queue)
	}

	records := make([]database.Record, howMany)
	copy(records, mp.queue[:howMany])

	mp.queue = append([]database.Record(nil), mp.queue[howMany:]...)

	return records
}

// Requeue returns records to the head of the pool keeping their order. This
// is used when a drained set of records could not be mined.
func (mp *Mempool) Requeue(records []database.Record) {
	if len(records) == 0 {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	queue := make([]database.Record, 0, len(records)+len(mp.queue))
	queue = append(queue, records...)
	queue = append(queue, mp.queue...)

	mp.queue = queue
}

// Copy returns a copy of the records in pool order.
func (mp *Mempool) Copy() []database.Record {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	records := make([]database.Record, len(mp.queue))
	copy(records, mp.queue)

	return records
}

// Truncate clears all the records from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.queue = nil
}

// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// NotifyFunc is called after a block enters the chain.
type NotifyFunc func(n Notification)

// Worker interface represents the behavior required to be implemented by any
// package providing support for the background mining of blocks.
type Worker interface {
	Shutdown()
	StartAutoMining()
	StopAutoMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis          genesis.Genesis
	Storage          database.Storage
	VerifySignatures bool // Cryptographically verify signatures, not just count them.
	Strict           bool // Fail to start on a malformed stored block.
	Notify           NotifyFunc
	EvHandler        EventHandler
}

// State manages the blockchain database and the pool of pending records.
type State struct {
	wmu sync.Mutex // Serializes every operation that extends the chain.

	cmu      sync.Mutex
	cancel   context.CancelFunc // Cancels the mining operation in flight.
	inflight []database.Record  // Records drained for the mining operation in flight.

	preempt atomic.Int32 // Peer imports waiting for the writer lock.
	shut    atomic.Bool

	genesis   genesis.Genesis
	evHandler EventHandler
	notify    NotifyFunc
	verify    signature.VerifyFunc

	db      *database.Database
	mempool *mempool.Mempool

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	notify := cfg.Notify
	if notify == nil {
		notify = func(Notification) {}
	}

	var verify signature.VerifyFunc
	if cfg.VerifySignatures {
		verify = signature.Verify
	}

	if cfg.Genesis.TransPerBlock == 0 {
		return nil, errors.New("genesis trans per block must be greater than zero")
	}

	db, err := database.Open(database.Config{
		Storage:          cfg.Storage,
		Difficulty:       int(cfg.Genesis.Difficulty),
		GenesisTimestamp: cfg.Genesis.Timestamp(),
		Verify:           verify,
		Strict:           cfg.Strict,
		EvHandler:        ev,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	state := State{
		genesis:   cfg.Genesis,
		evHandler: ev,
		notify:    notify,
		verify:    verify,
		db:        db,
		mempool:   mempool.New(),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	s.shut.Store(true)
	if s.Worker != nil {
		s.Worker.Shutdown()
	}
	s.CancelMining()

	// Wait for any writer still holding the lock.
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if n := s.mempool.Count(); n > 0 {
		s.evHandler("state: shutdown: WARNING: %d pending records are not persisted", n)
	}

	return nil
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// CancelMining signals the mining operation in flight to stop. A batch
// being mined is returned to the head of the pool, a single record added
// with AddBlockImmediate is mined again on the new tip.
func (s *State) CancelMining() {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	if s.cancel != nil {
		s.evHandler("state: CancelMining: MINING: CANCEL: signaled")
		s.cancel()
	}
}

// =============================================================================

// setCancel records the cancel function of the mining operation in flight.
func (s *State) setCancel(cancel context.CancelFunc) {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.cancel = cancel
}

// drain moves up to howMany records from the pool to the in flight set.
func (s *State) drain(howMany int) []database.Record {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.inflight = s.mempool.Drain(howMany)
	return s.inflight
}

// requeue returns the in flight records to the head of the pool.
func (s *State) requeue() {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.mempool.Requeue(s.inflight)
	s.inflight = nil
}

// setInflight records the records being mined outside the pool.
func (s *State) setInflight(records []database.Record) {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.inflight = records
}

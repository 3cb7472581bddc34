// Package database handles all the lower level support for maintaining the
// blockchain in memory and persisting it through a storage implementation.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(block Block) error
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks. An error returned by
// Next for a single entry doesn't end the iteration, Done does.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// =============================================================================

// Config represents the configuration required to open a chain.
type Config struct {
	Storage          Storage
	Difficulty       int
	GenesisTimestamp int64                // Epoch millis for a new genesis block, 0 means now.
	Verify           signature.VerifyFunc // When nil, signatures are only counted.
	Strict           bool                 // Fail the open on a malformed stored block.
	EvHandler        func(v string, args ...any)
}

// Database manages the ordered sequence of blocks for the node.
type Database struct {
	wmu sync.Mutex   // Serializes writers extending the tip.
	mu  sync.RWMutex // Protects the blocks and index.

	difficulty int
	verify     signature.VerifyFunc
	storage    Storage
	evHandler  func(v string, args ...any)

	blocks []Block
	index  map[string]int
}

// Open loads all the persisted blocks. If there are none, a genesis block is
// created and persisted.
func Open(cfg Config) (*Database, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	if cfg.Difficulty < 0 || cfg.Difficulty > maxDifficulty {
		return nil, fmt.Errorf("difficulty must be between 0 and %d, got %d", maxDifficulty, cfg.Difficulty)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db := Database{
		difficulty: cfg.Difficulty,
		verify:     cfg.Verify,
		storage:    cfg.Storage,
		evHandler:  ev,
		index:      make(map[string]int),
	}

	var loaded []Block
	iter := cfg.Storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			if cfg.Strict {
				return nil, fmt.Errorf("loading block: %w", err)
			}
			ev("database: Open: WARNING: skipping unreadable block: %s", err)
			continue
		}
		loaded = append(loaded, block)
	}

	for _, block := range orderChain(loaded, ev) {
		db.index[block.Hash] = len(db.blocks)
		db.blocks = append(db.blocks, block)
	}

	if len(db.blocks) == 0 {
		genesis, err := newGenesis(cfg.GenesisTimestamp)
		if err != nil {
			return nil, err
		}

		if err := db.storage.Write(genesis); err != nil {
			return nil, fmt.Errorf("writing genesis: %w", err)
		}

		ev("database: Open: created genesis block[%s]", genesis.Hash)

		db.index[genesis.Hash] = 0
		db.blocks = append(db.blocks, genesis)
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Difficulty returns the configured mining difficulty.
func (db *Database) Difficulty() int {
	return db.difficulty
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks including genesis.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// AppendMined builds a block on top of the tip for the record, mines it,
// appends it and persists it. The mining can be cancelled through the context.
func (db *Database) AppendMined(ctx context.Context, data Record) (Block, error) {
	db.wmu.Lock()
	defer db.wmu.Unlock()

	tip := db.LatestBlock()

	block := NewBlock(nextTimestamp(tip), data, tip.Hash)
	if err := block.Mine(ctx, db.difficulty, db.evHandler); err != nil {
		return Block{}, err
	}

	if err := db.append(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// ImportExternal validates a mined block received from a peer and when valid
// appends and persists it. A block that doesn't point at the current tip is
// rejected, there is no fork handling.
func (db *Database) ImportExternal(block Block) error {
	db.wmu.Lock()
	defer db.wmu.Unlock()

	db.evHandler("database: ImportExternal: started: blk[%s]", block.Hash)
	defer db.evHandler("database: ImportExternal: completed: blk[%s]", block.Hash)

	if err := block.ValidateNext(db.LatestBlock(), db.difficulty, db.verify, db.evHandler); err != nil {
		return err
	}

	return db.append(block)
}

// CheckNext validates the block against the current tip without importing
// it.
func (db *Database) CheckNext(block Block) error {
	return block.ValidateNext(db.LatestBlock(), db.difficulty, db.verify, db.evHandler)
}

// CheckCandidate validates a block without requiring it to extend the tip.
// The previous block only needs to exist somewhere in the chain.
func (db *Database) CheckCandidate(block Block) error {
	if !block.IsSelfConsistent() {
		return newReject(ReasonHashMismatch, block.Hash, "recomputed hash %s", ComputeHash(block))
	}

	if _, err := db.GetByHash(block.PreviousHash); err != nil {
		return newReject(ReasonPreviousUnknown, block.Hash, "previous block %s not found", block.PreviousHash)
	}

	return block.validateSignatures(db.verify, db.evHandler)
}

// IsValid walks the chain from the first block after genesis checking every
// block is self consistent, linked to its parent and sufficiently signed.
func (db *Database) IsValid() bool {
	return db.Validate() == nil
}

// Validate returns the first violation found walking the chain.
func (db *Database) Validate() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for i := 1; i < len(db.blocks); i++ {
		block := db.blocks[i]

		if !block.IsSelfConsistent() {
			return newReject(ReasonHashMismatch, block.Hash, "block %d", i)
		}

		if block.PreviousHash != db.blocks[i-1].Hash {
			return newReject(ReasonPreviousHash, block.Hash, "block %d", i)
		}

		if err := block.validateSignatures(db.verify, db.evHandler); err != nil {
			return err
		}
	}

	return nil
}

// GetByHash returns the block with the specified hash.
func (db *Database) GetByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i, exists := db.index[hash]
	if !exists {
		return Block{}, ErrNotFound
	}

	return db.blocks[i], nil
}

// GetAll returns a copy of the chain.
func (db *Database) GetAll() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// BlocksAfter returns the blocks that follow the block with the specified
// hash. The boolean is false when the hash is not part of the chain.
func (db *Database) BlocksAfter(hash string) ([]Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i, exists := db.index[hash]
	if !exists {
		return nil, false
	}

	blocks := make([]Block, len(db.blocks)-(i+1))
	copy(blocks, db.blocks[i+1:])

	return blocks, true
}

// GetByType returns the blocks containing at least one record of the
// specified kind, looking inside batch blocks.
func (db *Database) GetByType(kind Kind) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Block
	for _, block := range db.blocks {
		if block.Data.Type == kind {
			out = append(out, block)
			continue
		}

		for _, record := range block.Records() {
			if record.Type == kind {
				out = append(out, block)
				break
			}
		}
	}

	return out
}

// GetTransactionsByType returns every record of the specified kind in chain
// order, unwrapping batch blocks.
func (db *Database) GetTransactionsByType(kind Kind) []Record {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Record
	for _, block := range db.blocks {
		if block.Data.Type == kind {
			out = append(out, block.Data)
			continue
		}

		if block.Data.Type != KindBatch {
			continue
		}

		for _, record := range block.Records() {
			if record.Type == kind {
				out = append(out, record)
			}
		}
	}

	return out
}

// =============================================================================

// append adds the block to the chain after it was persisted. The caller
// must hold the writer lock.
func (db *Database) append(block Block) error {
	if err := db.storage.Write(block); err != nil {
		return fmt.Errorf("writing block %s: %w", block.Hash, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.index[block.Hash] = len(db.blocks)
	db.blocks = append(db.blocks, block)

	return nil
}

// newGenesis constructs the genesis block.
func newGenesis(timestamp int64) (Block, error) {
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	payload := struct {
		Message string `json:"message"`
	}{
		Message: "genesis",
	}

	data, err := NewRecord(KindIdentity, payload, 0)
	if err != nil {
		return Block{}, err
	}

	return NewBlock(timestamp, data, signature.ZeroHash), nil
}

// nextTimestamp returns the current time in millis, never going backwards
// relative to the tip.
func nextTimestamp(tip Block) int64 {
	now := time.Now().UnixMilli()
	if now < tip.Timestamp {
		return tip.Timestamp
	}
	return now
}

// orderChain sorts the blocks by timestamp and then follows the previous hash
// linkage from the genesis block so blocks sharing a timestamp keep their
// chain order. Blocks that can't be linked are dropped.
func orderChain(blocks []Block, ev func(v string, args ...any)) []Block {
	if len(blocks) == 0 {
		return nil
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Timestamp != blocks[j].Timestamp {
			return blocks[i].Timestamp < blocks[j].Timestamp
		}
		return blocks[i].Hash < blocks[j].Hash
	})

	// Children are kept in timestamp order so the earliest child wins.
	children := make(map[string][]Block)
	for _, block := range blocks {
		children[block.PreviousHash] = append(children[block.PreviousHash], block)
	}

	roots := children[signature.ZeroHash]
	if len(roots) == 0 {
		ev("database: orderChain: WARNING: no genesis block found, ignoring %d blocks", len(blocks))
		return nil
	}

	chain := []Block{roots[0]}
	for {
		next, exists := children[chain[len(chain)-1].Hash]
		if !exists {
			break
		}
		chain = append(chain, next[0])
	}

	if len(chain) != len(blocks) {
		ev("database: orderChain: WARNING: %d blocks are not linked to the chain", len(blocks)-len(chain))
	}

	return chain
}

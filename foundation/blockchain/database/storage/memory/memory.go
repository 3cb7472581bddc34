// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"errors"
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.Block
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and stores it in memory.
func (m *Memory) Write(block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.blocks {
		if b.Hash == block.Hash {
			return errors.New("block already exists")
		}
	}

	m.blocks = append(m.blocks, block)

	return nil
}

// Count returns the number of stored blocks.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blocks)
}

// ForEach returns an iterator to walk through a snapshot of the blocks.
func (m *Memory) ForEach() database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.Block, len(m.blocks))
	copy(blocks, m.blocks)

	return &memoryIterator{blocks: blocks}
}

// Reset will clear out the blockchain in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the stored blocks. This implements the database Iterator interface.
type memoryIterator struct {
	blocks  []database.Block // Snapshot of the stored blocks.
	current int              // Index of the next block.
	eoc     bool             // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block.
func (mi *memoryIterator) Next() (database.Block, error) {
	if mi.current >= len(mi.blocks) {
		mi.eoc = true
		return database.Block{}, errors.New("end of chain")
	}

	block := mi.blocks[mi.current]
	mi.current++

	return block, nil
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}

package state

import "github.com/ardanlabs/peerledger/foundation/blockchain/database"

// PendingCount returns the current number of records in the pool.
func (s *State) PendingCount() int {
	return s.mempool.Count()
}

// PendingRecords returns a copy of the records in the pool.
func (s *State) PendingRecords() []database.Record {
	return s.mempool.Copy()
}

// UnminedRecords returns the records that are not in the chain yet, the
// records being mined followed by the pool.
func (s *State) UnminedRecords() []database.Record {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	records := make([]database.Record, 0, len(s.inflight)+s.mempool.Count())
	records = append(records, s.inflight...)
	return append(records, s.mempool.Copy()...)
}

// LatestBlock returns the tip of the chain.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// Length returns the number of blocks in the chain including genesis.
func (s *State) Length() int {
	return s.db.Length()
}

// Difficulty returns the mining difficulty of the chain.
func (s *State) Difficulty() int {
	return s.db.Difficulty()
}

// GetByHash returns the block with the specified hash.
func (s *State) GetByHash(hash string) (database.Block, error) {
	return s.db.GetByHash(hash)
}

// GetAll returns a copy of the chain.
func (s *State) GetAll() []database.Block {
	return s.db.GetAll()
}

// BlocksAfter returns the blocks following the specified hash.
func (s *State) BlocksAfter(hash string) ([]database.Block, bool) {
	return s.db.BlocksAfter(hash)
}

// GetByType returns the blocks carrying a record of the specified kind.
func (s *State) GetByType(kind database.Kind) []database.Block {
	return s.db.GetByType(kind)
}

// GetTransactionsByType returns every record of the specified kind in
// chain order.
func (s *State) GetTransactionsByType(kind database.Kind) []database.Record {
	return s.db.GetTransactionsByType(kind)
}

// CheckCandidate validates a block that doesn't need to extend the tip.
func (s *State) CheckCandidate(block database.Block) error {
	return s.db.CheckCandidate(block)
}

// IsValid reports whether the entire chain is valid.
func (s *State) IsValid() bool {
	return s.db.IsValid()
}

// Validate returns the first violation found in the chain.
func (s *State) Validate() error {
	return s.db.Validate()
}

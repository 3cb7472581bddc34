package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are no records in the pool.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// Submit adds the record to the tail of the pool and returns the number of
// pending records. Submit never blocks on mining.
func (s *State) Submit(record database.Record) int {
	n := s.mempool.Submit(record)

	s.evHandler("state: Submit: record[%s]: pending[%d]", record.Type, n)

	return n
}

// VerifyRecord checks the record has enough signatures and every signature
// verifies against its claimed public key.
func (s *State) VerifyRecord(record database.Record) error {
	if record.Type == "" {
		return errors.New("record type is required")
	}

	if !record.HasEnoughSignatures() {
		return fmt.Errorf("got %d signatures, required %d", len(record.Signatures), record.RequiredSigners)
	}

	if s.verify == nil {
		return nil
	}

	return record.VerifySignatures(s.verify)
}

// MineNext drains up to the configured number of records from the pool,
// wraps them in a batch and mines the batch into a new block. When a
// validator address is provided a block:validated notification is published
// for the block. If the mining is cancelled the drained records are returned
// to the head of the pool.
func (s *State) MineNext(ctx context.Context, validatorAddress string) (database.Block, error) {
	block, err := s.mineNext(ctx)
	if err != nil {
		return database.Block{}, err
	}

	s.notify(Notification{
		Kind:      BlockMined,
		BlockHash: block.Hash,
		Timestamp: time.Now().UnixMilli(),
		Block:     block,
	})

	if validatorAddress != "" {
		s.notify(Notification{
			Kind:             BlockValidated,
			BlockHash:        block.Hash,
			ValidatorAddress: validatorAddress,
			Timestamp:        time.Now().UnixMilli(),
			Block:            block,
		})
	}

	return block, nil
}

// AddBlockImmediate mines the record into its own block right away. The
// record is not batched and pending records are left in the pool.
func (s *State) AddBlockImmediate(ctx context.Context, record database.Record) (database.Block, error) {
	s.evHandler("state: AddBlockImmediate: started: record[%s]", record.Type)
	defer s.evHandler("state: AddBlockImmediate: completed")

	var block database.Block
	for {
		var err error
		block, err = s.appendMined(ctx, record)
		if err == nil {
			break
		}

		// A peer block replaced the tip, mine the record again on top of it.
		if !errors.Is(err, context.Canceled) || ctx.Err() != nil || s.shut.Load() {
			return database.Block{}, err
		}

		s.evHandler("state: AddBlockImmediate: MINING: interrupted, mine on new tip: record[%s]", record.Type)
	}

	s.notify(Notification{
		Kind:      BlockMined,
		BlockHash: block.Hash,
		Timestamp: time.Now().UnixMilli(),
		Block:     block,
	})

	return block, nil
}

// ProcessPeerBlock takes a block received from a peer, validates it and
// if that passes, appends the block to the chain. Only a block that extends
// the current tip cancels the mining operation in flight.
func (s *State) ProcessPeerBlock(block database.Block) error {
	s.evHandler("state: ProcessPeerBlock: started: blk[%s]", block.Hash)
	defer s.evHandler("state: ProcessPeerBlock: completed: blk[%s]", block.Hash)

	if err := s.db.CheckNext(block); err != nil {
		return err
	}

	s.preempt.Add(1)
	s.CancelMining()

	s.wmu.Lock()
	s.preempt.Add(-1)
	err := s.db.ImportExternal(block)
	s.wmu.Unlock()

	if err != nil {
		return err
	}

	s.notify(Notification{
		Kind:      BlockImported,
		BlockHash: block.Hash,
		Timestamp: time.Now().UnixMilli(),
		Block:     block,
	})

	return nil
}

// =============================================================================

// mineNext performs the drain and mining under the writer lock.
func (s *State) mineNext(ctx context.Context) (database.Block, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.evHandler("state: MineNext: MINING: check mempool count")

	records := s.drain(int(s.genesis.TransPerBlock))
	if len(records) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	batch, err := database.NewBatch(records)
	if err != nil {
		s.requeue()
		return database.Block{}, fmt.Errorf("building batch: %w", err)
	}

	s.evHandler("state: MineNext: MINING: perform POW: records[%d]", len(records))

	block, err := s.mine(ctx, batch)
	if err != nil {
		s.evHandler("state: MineNext: MINING: requeue records[%d]: %s", len(records), err)
		s.requeue()
		return database.Block{}, err
	}

	s.setInflight(nil)

	return block, nil
}

// appendMined mines a single record under the writer lock.
func (s *State) appendMined(ctx context.Context, record database.Record) (database.Block, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.setInflight([]database.Record{record})
	defer s.setInflight(nil)

	return s.mine(ctx, record)
}

// mine runs the proof of work with a context the node can cancel. The
// caller must hold the writer lock.
func (s *State) mine(ctx context.Context, data database.Record) (database.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setCancel(cancel)
	defer s.setCancel(nil)

	// A peer block is waiting to replace the tip.
	if s.preempt.Load() > 0 {
		return database.Block{}, context.Canceled
	}

	return s.db.AppendMined(ctx, data)
}

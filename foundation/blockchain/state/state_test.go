package state_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newState(t *testing.T, notify state.NotifyFunc) *state.State {
	t.Helper()

	return newStateDifficulty(t, 1, notify)
}

func newStateDifficulty(t *testing.T, difficulty uint16, notify state.NotifyFunc) *state.State {
	t.Helper()

	gen := genesis.Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		TransPerBlock: 3,
		Difficulty:    difficulty,
	}

	st, err := state.New(state.Config{
		Genesis: gen,
		Storage: memory.New(),
		Notify:  notify,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	return st
}

func record(t *testing.T, n int) database.Record {
	t.Helper()

	r, err := database.NewRecord(database.KindEvent, map[string]int{"n": n}, 0)
	if err != nil {
		t.Fatalf("Should be able to construct a record: %v", err)
	}

	return r
}

// =============================================================================

func Test_MineBatches(t *testing.T) {
	t.Log("Given the need to mine pending records in FIFO batches.")
	{
		st := newState(t, nil)

		for i := 1; i <= 10; i++ {
			st.Submit(record(t, i))
		}

		exp := [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
		for i, batch := range exp {
			block, err := st.MineNext(context.Background(), "")
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, i, err)
			}

			records, ok := block.Data.Batch()
			if !ok {
				t.Fatalf("\t%s\tShould mine a batch block.", failed)
			}

			if len(records) != len(batch) {
				t.Fatalf("\t%s\tShould carry %d records, got %d.", failed, len(batch), len(records))
			}

			for j, n := range batch {
				if got, want := string(records[j].Payload), fmt.Sprintf(`{"n":%d}`, n); got != want {
					t.Logf("\t%s\tgot: %s", failed, got)
					t.Logf("\t%s\texp: %s", failed, want)
					t.Fatalf("\t%s\tShould keep the submit order.", failed)
				}
			}
		}
		t.Logf("\t%s\tShould mine three batches in submit order.", success)

		if st.PendingCount() != 1 {
			t.Fatalf("\t%s\tShould leave one record pending, got %d.", failed, st.PendingCount())
		}
		t.Logf("\t%s\tShould leave one record pending.", success)

		if st.Length() != 4 || !st.IsValid() {
			t.Fatalf("\t%s\tShould have a valid chain of four blocks.", failed)
		}
		t.Logf("\t%s\tShould have a valid chain of four blocks.", success)

		if got := st.GetTransactionsByType(database.KindEvent); len(got) != 9 {
			t.Fatalf("\t%s\tShould find nine event records, got %d.", failed, len(got))
		}
		t.Logf("\t%s\tShould find nine event records.", success)
	}
}

func Test_MineEmpty(t *testing.T) {
	st := newState(t, nil)

	if _, err := st.MineNext(context.Background(), ""); !errors.Is(err, state.ErrNoTransactions) {
		t.Fatalf("Should get ErrNoTransactions, got %v", err)
	}
}

func Test_MineCancelled(t *testing.T) {
	t.Log("Given the need to abandon a cancelled mining operation.")
	{
		st := newState(t, nil)

		for i := 1; i <= 4; i++ {
			st.Submit(record(t, i))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := st.MineNext(ctx, ""); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould get a cancel error: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a cancel error.", success)

		pending := st.PendingRecords()
		if len(pending) != 4 || string(pending[0].Payload) != `{"n":1}` {
			t.Fatalf("\t%s\tShould return the records to the head of the pool.", failed)
		}
		t.Logf("\t%s\tShould return the records to the head of the pool.", success)

		if st.Length() != 1 {
			t.Fatalf("\t%s\tShould leave the chain unchanged.", failed)
		}
		t.Logf("\t%s\tShould leave the chain unchanged.", success)
	}
}

func Test_Notifications(t *testing.T) {
	t.Log("Given the need to publish notifications for mined blocks.")
	{
		var got []state.Notification
		st := newState(t, func(n state.Notification) {
			got = append(got, n)
		})

		st.Submit(record(t, 1))

		block, err := st.MineNext(context.Background(), "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine: %v", failed, err)
		}

		if len(got) != 2 || got[0].Kind != state.BlockMined || got[1].Kind != state.BlockValidated {
			t.Fatalf("\t%s\tShould publish mined and validated: %+v", failed, got)
		}
		t.Logf("\t%s\tShould publish mined and validated.", success)

		if got[1].BlockHash != block.Hash || got[1].ValidatorAddress != "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4" {
			t.Fatalf("\t%s\tShould carry the block hash and validator.", failed)
		}
		t.Logf("\t%s\tShould carry the block hash and validator.", success)
	}
}

func Test_AddBlockImmediate(t *testing.T) {
	t.Log("Given the need to mine a single record right away.")
	{
		st := newState(t, nil)
		st.Submit(record(t, 1))

		file, err := database.NewRecord(database.KindFile, map[string]string{"contentHash": "abc"}, 0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a record: %v", failed, err)
		}

		block, err := st.AddBlockImmediate(context.Background(), file)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine the record: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine the record.", success)

		if block.Data.Type != database.KindFile {
			t.Fatalf("\t%s\tShould mine the record on its own.", failed)
		}
		t.Logf("\t%s\tShould mine the record on its own.", success)

		if st.PendingCount() != 1 {
			t.Fatalf("\t%s\tShould leave the pool untouched.", failed)
		}
		t.Logf("\t%s\tShould leave the pool untouched.", success)
	}
}

func Test_ProcessPeerBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by a peer.")
	{
		var got []state.Notification
		local := newState(t, func(n state.Notification) {
			got = append(got, n)
		})
		remote := newState(t, nil)

		remote.Submit(record(t, 1))
		block, err := remote.MineNext(context.Background(), "")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine on the peer: %v", failed, err)
		}

		if err := local.ProcessPeerBlock(block); err != nil {
			t.Fatalf("\t%s\tShould accept the peer block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the peer block.", success)

		if local.LatestBlock().Hash != block.Hash {
			t.Fatalf("\t%s\tShould extend the chain.", failed)
		}
		t.Logf("\t%s\tShould extend the chain.", success)

		if len(got) != 1 || got[0].Kind != state.BlockImported {
			t.Fatalf("\t%s\tShould publish an import notification.", failed)
		}
		t.Logf("\t%s\tShould publish an import notification.", success)

		err = local.ProcessPeerBlock(block)
		if re := database.GetReject(err); re == nil || re.Reason != database.ReasonPreviousHash {
			t.Fatalf("\t%s\tShould reject a block not on the tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a block not on the tip.", success)
	}
}

func Test_PeerBlockDuringImmediate(t *testing.T) {
	t.Log("Given the need to keep mining a record while peer blocks arrive.")
	{
		t.Logf("\tTest 0:\tWhen an invalid peer block arrives.")
		{
			st := newStateDifficulty(t, 4, nil)

			type result struct {
				block database.Block
				err   error
			}
			done := make(chan result, 1)
			rec := record(t, 1)

			go func() {
				b, err := st.AddBlockImmediate(context.Background(), rec)
				done <- result{b, err}
			}()

			var res result
		loop:
			for {
				err := st.ProcessPeerBlock(database.Block{Hash: "bad"})
				if re := database.GetReject(err); re == nil || re.Reason != database.ReasonHashMismatch {
					t.Fatalf("\t%s\tTest 0:\tShould reject the invalid block: %v", failed, err)
				}

				select {
				case res = <-done:
					break loop
				case <-time.After(time.Millisecond):
				}
			}
			t.Logf("\t%s\tTest 0:\tShould reject the invalid block.", success)

			if res.err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould finish mining the record: %v", failed, res.err)
			}
			t.Logf("\t%s\tTest 0:\tShould finish mining the record.", success)

			if st.LatestBlock().Hash != res.block.Hash || st.Length() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould extend the chain with the record.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould extend the chain with the record.", success)
		}

		t.Logf("\tTest 1:\tWhen a valid peer block arrives.")
		{
			local := newStateDifficulty(t, 3, nil)
			remote := newStateDifficulty(t, 3, nil)

			remote.Submit(record(t, 1))
			peerBlock, err := remote.MineNext(context.Background(), "")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine on the peer: %v", failed, err)
			}

			type result struct {
				block database.Block
				err   error
			}
			done := make(chan result, 1)
			rec := record(t, 2)

			go func() {
				b, err := local.AddBlockImmediate(context.Background(), rec)
				done <- result{b, err}
			}()

			importErr := local.ProcessPeerBlock(peerBlock)
			res := <-done

			if res.err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould not fail the record: %v", failed, res.err)
			}
			t.Logf("\t%s\tTest 1:\tShould not fail the record.", success)

			if local.LatestBlock().Hash != res.block.Hash {
				t.Fatalf("\t%s\tTest 1:\tShould have the record on the tip.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould have the record on the tip.", success)

			switch importErr {
			case nil:
				if res.block.PreviousHash != peerBlock.Hash || local.Length() != 3 {
					t.Fatalf("\t%s\tTest 1:\tShould mine the record on top of the peer block.", failed)
				}
			default:
				if re := database.GetReject(importErr); re == nil || re.Reason != database.ReasonPreviousHash {
					t.Fatalf("\t%s\tTest 1:\tShould only lose the race on the tip: %v", failed, importErr)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould keep a consistent chain.", success)

			if !local.IsValid() {
				t.Fatalf("\t%s\tTest 1:\tShould have a valid chain: %v", failed, local.Validate())
			}
			t.Logf("\t%s\tTest 1:\tShould have a valid chain.", success)
		}
	}
}

func Test_VerifyRecord(t *testing.T) {
	st := newState(t, nil)

	r, err := database.NewRecord(database.KindTransaction, map[string]int{"n": 1}, 2)
	if err != nil {
		t.Fatalf("Should be able to construct a record: %v", err)
	}

	if err := st.VerifyRecord(r); err == nil {
		t.Fatalf("Should reject a record missing signatures")
	}
}

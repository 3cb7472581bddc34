package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newState(t *testing.T) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		Genesis: genesis.Genesis{TransPerBlock: 2, Difficulty: 1},
		Storage: memory.New(),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	return st
}

func submit(t *testing.T, st *state.State, n int) {
	t.Helper()

	for i := range n {
		r, err := database.NewRecord(database.KindEvent, map[string]int{"n": i}, 0)
		if err != nil {
			t.Fatalf("Should be able to construct a record: %v", err)
		}
		st.Submit(r)
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// =============================================================================

func TestAutoMining(t *testing.T) {
	t.Log("Given the need to mine pending records in the background.")
	{
		st := newState(t)
		w := worker.Run(st, worker.Config{BlockGenerationInterval: 20 * time.Millisecond})
		defer st.Shutdown()

		submit(t, st, 5)

		w.StartAutoMining()
		w.StartAutoMining()

		if !waitFor(func() bool { return st.PendingCount() == 0 }) {
			t.Fatalf("\t%s\tShould drain the pool, pending[%d].", failed, st.PendingCount())
		}
		t.Logf("\t%s\tShould drain the pool.", success)

		// Five records with two per block.
		if st.Length() != 4 {
			t.Fatalf("\t%s\tShould mine three blocks, got %d.", failed, st.Length()-1)
		}
		t.Logf("\t%s\tShould mine three blocks.", success)

		w.StopAutoMining()
		w.StopAutoMining()

		if w.IsAutoMining() {
			t.Fatalf("\t%s\tShould report auto mining stopped.", failed)
		}
		t.Logf("\t%s\tShould report auto mining stopped.", success)

		submit(t, st, 1)
		time.Sleep(100 * time.Millisecond)

		if st.PendingCount() != 1 {
			t.Fatalf("\t%s\tShould not mine after stop.", failed)
		}
		t.Logf("\t%s\tShould not mine after stop.", success)
	}
}

func TestPeerUpdate(t *testing.T) {
	t.Log("Given the need to update from peers on an interval.")
	{
		st := newState(t)

		var calls atomic.Int32
		worker.Run(st, worker.Config{
			PeerUpdateInterval: 20 * time.Millisecond,
			PeerUpdate: func(ctx context.Context) {
				calls.Add(1)
			},
		})

		if !waitFor(func() bool { return calls.Load() >= 3 }) {
			t.Fatalf("\t%s\tShould call the peer update repeatedly.", failed)
		}
		t.Logf("\t%s\tShould call the peer update repeatedly.", success)

		st.Shutdown()
		n := calls.Load()
		time.Sleep(60 * time.Millisecond)

		if calls.Load() != n {
			t.Fatalf("\t%s\tShould stop calling after shutdown.", failed)
		}
		t.Logf("\t%s\tShould stop calling after shutdown.", success)
	}
}

package consensus_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/p2p"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type node struct {
	state    *state.State
	protocol *consensus.Protocol
}

func newNode(t *testing.T, hub *p2p.Hub, id string) node {
	t.Helper()

	st, err := state.New(state.Config{
		Genesis: genesis.Genesis{
			Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			TransPerBlock: 5,
			Difficulty:    1,
		},
		Storage: memory.New(),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	p, err := consensus.New(consensus.Config{
		NodeID:     id,
		Chain:      st,
		Transport:  hub.Join(id),
		WaitWindow: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Should be able to construct the protocol: %v", err)
	}

	t.Cleanup(func() { hub.Leave(id) })

	return node{state: st, protocol: p}
}

func mine(t *testing.T, st *state.State, n int) database.Block {
	t.Helper()

	r, err := database.NewRecord(database.KindEvent, map[string]int{"n": n}, 0)
	if err != nil {
		t.Fatalf("Should be able to construct a record: %v", err)
	}
	st.Submit(r)

	block, err := st.MineNext(context.Background(), "")
	if err != nil {
		t.Fatalf("Should be able to mine: %v", err)
	}

	return block
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

func Test_Threshold(t *testing.T) {
	type table struct {
		name     string
		statuses []consensus.Status
		accepted bool
	}

	v, i := consensus.StatusValid, consensus.StatusInvalid

	tt := []table{
		{name: "two-of-three", statuses: []consensus.Status{v, v, i}, accepted: false},
		{name: "three-of-four", statuses: []consensus.Status{v, v, v, i}, accepted: true},
		{name: "none", statuses: nil, accepted: false},
		{name: "all", statuses: []consensus.Status{v}, accepted: true},
	}

	t.Log("Given the need to tally validation results.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				tally := consensus.NewTally()
				for j, status := range tst.statuses {
					tally.Add(consensus.ValidationResult{
						BlockHash:   "abc",
						Status:      status,
						ValidatorID: fmt.Sprintf("node-%d", j),
					})
				}

				res := tally.Compute("abc", consensus.DefaultThreshold)
				if res.Accepted != tst.accepted {
					t.Fatalf("\t%s\tTest %d:\tShould get accepted %t for %d/%d.", failed, testID, tst.accepted, res.Valid, res.Total)
				}
				t.Logf("\t%s\tTest %d:\tShould get accepted %t for %d/%d.", success, testID, tst.accepted, res.Valid, res.Total)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ThresholdBoundary(t *testing.T) {
	if !consensus.Accepted(67, 100, 0.67) {
		t.Fatalf("Should accept a ratio exactly on the threshold")
	}

	if consensus.Accepted(66, 100, 0.67) {
		t.Fatalf("Should reject a ratio below the threshold")
	}

	tally := consensus.NewTally()
	tally.Add(consensus.ValidationResult{BlockHash: "abc", Status: consensus.StatusInvalid, ValidatorID: "a"})
	tally.Add(consensus.ValidationResult{BlockHash: "abc", Status: consensus.StatusValid, ValidatorID: "a"})

	if res := tally.Compute("abc", 0.67); res.Total != 1 || !res.Accepted {
		t.Fatalf("Should count a validator once with its latest answer: %+v", res)
	}
}

func Test_Sync(t *testing.T) {
	t.Log("Given the need to sync a node that is behind.")
	{
		hub := p2p.NewHub()
		a := newNode(t, hub, "a")
		b := newNode(t, hub, "b")

		var hashes []string
		for n := range 3 {
			hashes = append(hashes, mine(t, a.state, n).Hash)
		}

		if err := b.protocol.RequestSync(); err != nil {
			t.Fatalf("\t%s\tShould be able to request a sync: %v", failed, err)
		}

		if !waitFor(func() bool { return b.state.Length() == 4 }) {
			t.Fatalf("\t%s\tShould import the missing blocks, length[%d].", failed, b.state.Length())
		}
		t.Logf("\t%s\tShould import the missing blocks.", success)

		if b.state.LatestBlock().Hash != hashes[2] || !b.state.IsValid() {
			t.Fatalf("\t%s\tShould end on the same tip.", failed)
		}
		t.Logf("\t%s\tShould end on the same tip.", success)

		block := mine(t, a.state, 10)
		if err := a.protocol.AnnounceBlock(block); err != nil {
			t.Fatalf("\t%s\tShould be able to announce: %v", failed, err)
		}

		if !waitFor(func() bool { return b.state.LatestBlock().Hash == block.Hash }) {
			t.Fatalf("\t%s\tShould sync on an unknown announced block.", failed)
		}
		t.Logf("\t%s\tShould sync on an unknown announced block.", success)
	}
}

func Test_Validation(t *testing.T) {
	t.Log("Given the need to reach consensus on a block.")
	{
		hub := p2p.NewHub()
		a := newNode(t, hub, "a")
		peers := []node{newNode(t, hub, "b"), newNode(t, hub, "c"), newNode(t, hub, "d")}

		// The peers only know the genesis block, so a block on top of
		// genesis has a known parent for all of them.
		block := mine(t, a.state, 1)

		if err := a.protocol.RequestValidation(block); err != nil {
			t.Fatalf("\t%s\tShould be able to request validation: %v", failed, err)
		}

		res, err := a.protocol.CheckConsensus(context.Background(), block.Hash)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to check consensus: %v", failed, err)
		}

		if res.Total != len(peers) || !res.Accepted {
			t.Fatalf("\t%s\tShould accept with every peer valid: %+v", failed, res)
		}
		t.Logf("\t%s\tShould accept with every peer valid.", success)

		tampered := block
		tampered.Nonce++

		if err := a.protocol.RequestValidation(tampered); err != nil {
			t.Fatalf("\t%s\tShould be able to request validation: %v", failed, err)
		}

		res, err = a.protocol.CheckConsensus(context.Background(), tampered.Hash)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to check consensus: %v", failed, err)
		}

		if res.Valid != 0 || res.Accepted {
			t.Fatalf("\t%s\tShould reject a tampered block: %+v", failed, res)
		}
		t.Logf("\t%s\tShould reject a tampered block.", success)

		vr := peers[0].protocol.Validate(tampered)
		if vr.Status != consensus.StatusInvalid || vr.Reason != string(database.ReasonHashMismatch) {
			t.Fatalf("\t%s\tShould report the reason: %+v", failed, vr)
		}
		t.Logf("\t%s\tShould report the reason.", success)
	}
}

func Test_NoResponses(t *testing.T) {
	hub := p2p.NewHub()
	a := newNode(t, hub, "a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := a.protocol.CheckConsensus(ctx, "unknown")
	if err != nil {
		t.Fatalf("Should be able to check consensus: %v", err)
	}

	if res.Total != 0 || res.Accepted {
		t.Fatalf("Should not accept without responses: %+v", res)
	}
}

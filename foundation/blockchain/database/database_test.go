package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

const genesisTime = 1700000000000

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to create and reload the genesis block.")
	{
		path := t.TempDir()

		db := openDisk(t, path, database.Config{Difficulty: 1, GenesisTimestamp: genesisTime})
		genesis := db.LatestBlock()
		db.Close()

		if db.Length() != 1 {
			t.Fatalf("\t%s\tShould start with a single block: %d", failed, db.Length())
		}
		t.Logf("\t%s\tShould start with a single block.", success)

		if genesis.PreviousHash != signature.ZeroHash || genesis.Data.Type != database.KindIdentity {
			t.Fatalf("\t%s\tShould have the genesis shape.", failed)
		}
		t.Logf("\t%s\tShould have the genesis shape.", success)

		if genesis.Nonce != 0 || !genesis.IsSelfConsistent() {
			t.Fatalf("\t%s\tShould be an unmined self consistent block.", failed)
		}
		t.Logf("\t%s\tShould be an unmined self consistent block.", success)

		db = openDisk(t, path, database.Config{Difficulty: 1})
		defer db.Close()

		if db.Length() != 1 || db.LatestBlock().Hash != genesis.Hash {
			t.Fatalf("\t%s\tShould reload the same genesis block.", failed)
		}
		t.Logf("\t%s\tShould reload the same genesis block.", success)

		other := openMemory(t, database.Config{Difficulty: 1, GenesisTimestamp: genesisTime})
		if other.LatestBlock().Hash != genesis.Hash {
			t.Fatalf("\t%s\tShould produce the same genesis for the same timestamp.", failed)
		}
		t.Logf("\t%s\tShould produce the same genesis for the same timestamp.", success)
	}
}

func Test_AppendAndReload(t *testing.T) {
	t.Log("Given the need to append blocks and reload them from disk.")
	{
		path := t.TempDir()
		db := openDisk(t, path, database.Config{Difficulty: 2, GenesisTimestamp: genesisTime})

		var hashes []string
		for i := range 3 {
			record := newRecord(t, database.KindEvent, map[string]any{"seq": i})

			block, err := db.AppendMined(context.Background(), record)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to append block %d: %v", failed, i, err)
			}
			hashes = append(hashes, block.Hash)

			if !block.IsHashSolved(2) {
				t.Fatalf("\t%s\tShould mine block %d to the difficulty.", failed, i)
			}
		}
		t.Logf("\t%s\tShould be able to append three mined blocks.", success)

		if !db.IsValid() {
			t.Fatalf("\t%s\tShould have a valid chain: %v", failed, db.Validate())
		}
		t.Logf("\t%s\tShould have a valid chain.", success)

		db.Close()

		db = openDisk(t, path, database.Config{Difficulty: 2})
		defer db.Close()

		blocks := db.GetAll()
		if len(blocks) != 4 {
			t.Fatalf("\t%s\tShould reload four blocks: %d", failed, len(blocks))
		}
		t.Logf("\t%s\tShould reload four blocks.", success)

		for i, hash := range hashes {
			if blocks[i+1].Hash != hash {
				t.Fatalf("\t%s\tShould reload block %d in order.", failed, i+1)
			}
		}
		t.Logf("\t%s\tShould reload the blocks in order.", success)

		after, ok := db.BlocksAfter(hashes[0])
		if !ok || len(after) != 2 || after[0].Hash != hashes[1] {
			t.Fatalf("\t%s\tShould return the blocks after a known hash.", failed)
		}
		t.Logf("\t%s\tShould return the blocks after a known hash.", success)

		if _, ok := db.BlocksAfter("unknown"); ok {
			t.Fatalf("\t%s\tShould report an unknown hash.", failed)
		}
		t.Logf("\t%s\tShould report an unknown hash.", success)
	}
}

func Test_ImportExternal(t *testing.T) {
	type table struct {
		name   string
		block  func(t *testing.T, peer *database.Database, tip database.Block) database.Block
		verify signature.VerifyFunc
		reason database.Reason
	}

	tt := []table{
		{
			name: "tampered",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				b := mineOn(t, peer, newRecord(t, database.KindEvent, map[string]any{"n": 1}))
				b.Data = newRecord(t, database.KindEvent, map[string]any{"n": 2})
				return b
			},
			reason: database.ReasonHashMismatch,
		},
		{
			name: "unsolved",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				b := database.NewBlock(time.Now().UnixMilli(), newRecord(t, database.KindEvent, map[string]any{"n": 1}), tip.Hash)
				for b.IsHashSolved(1) {
					b.Nonce++
					b.Hash = database.ComputeHash(b)
				}
				return b
			},
			reason: database.ReasonDifficultyNotMet,
		},
		{
			name: "unsolved-wrong-parent",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				b := database.NewBlock(time.Now().UnixMilli(), newRecord(t, database.KindEvent, map[string]any{"n": 1}), "abc")
				for b.IsHashSolved(1) {
					b.Nonce++
					b.Hash = database.ComputeHash(b)
				}
				return b
			},
			reason: database.ReasonPreviousHash,
		},
		{
			name: "wrong-parent",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				b := database.NewBlock(time.Now().UnixMilli(), newRecord(t, database.KindEvent, map[string]any{"n": 1}), "abc")
				if err := b.Mine(context.Background(), 1, nil); err != nil {
					t.Fatalf("Should be able to mine: %v", err)
				}
				return b
			},
			reason: database.ReasonPreviousHash,
		},
		{
			name: "unsigned",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				r, err := database.NewRecord(database.KindTransaction, map[string]any{"n": 1}, 1)
				if err != nil {
					t.Fatalf("Should be able to construct a record: %v", err)
				}
				return mineOn(t, peer, r)
			},
			reason: database.ReasonInsufficientSigners,
		},
		{
			name: "forged",
			block: func(t *testing.T, peer *database.Database, tip database.Block) database.Block {
				r, err := database.NewRecord(database.KindTransaction, map[string]any{"n": 1}, 1)
				if err != nil {
					t.Fatalf("Should be able to construct a record: %v", err)
				}
				r.Signatures = append(r.Signatures, signature.Signature{PublicKey: "0x02", Signature: "0x00"})
				return mineOn(t, peer, r)
			},
			verify: func([]byte, string, string) bool { return false },
			reason: database.ReasonInvalidSignature,
		},
	}

	t.Log("Given the need to reject invalid blocks from peers.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					cfg := database.Config{Difficulty: 1, GenesisTimestamp: genesisTime, Verify: tst.verify}
					db := openMemory(t, cfg)
					peer := openMemory(t, database.Config{Difficulty: 1, GenesisTimestamp: genesisTime})

					tip := db.LatestBlock()
					block := tst.block(t, peer, tip)

					err := db.ImportExternal(block)
					re := database.GetReject(err)
					if re == nil {
						t.Fatalf("\t%s\tTest %d:\tShould get a reject error: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get a reject error.", success, testID)

					if re.Reason != tst.reason {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, re.Reason)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.reason)
						t.Fatalf("\t%s\tTest %d:\tShould get the correct reason.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the correct reason.", success, testID)

					if db.Length() != 1 || db.LatestBlock().Hash != tip.Hash {
						t.Fatalf("\t%s\tTest %d:\tShould leave the chain unchanged.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould leave the chain unchanged.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ImportValid(t *testing.T) {
	t.Log("Given the need to accept a valid block from a peer.")
	{
		db := openMemory(t, database.Config{Difficulty: 1, GenesisTimestamp: genesisTime})
		peer := openMemory(t, database.Config{Difficulty: 1, GenesisTimestamp: genesisTime})

		block := mineOn(t, peer, newRecord(t, database.KindEvent, map[string]any{"n": 1}))

		if err := db.ImportExternal(block); err != nil {
			t.Fatalf("\t%s\tShould be able to import the block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to import the block.", success)

		if db.LatestBlock().Hash != block.Hash || !db.IsValid() {
			t.Fatalf("\t%s\tShould extend the chain with the block.", failed)
		}
		t.Logf("\t%s\tShould extend the chain with the block.", success)

		if _, err := db.GetByHash(block.Hash); err != nil {
			t.Fatalf("\t%s\tShould find the block by hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould find the block by hash.", success)

		if err := db.ImportExternal(block); !database.IsReject(err) {
			t.Fatalf("\t%s\tShould reject the same block twice.", failed)
		}
		t.Logf("\t%s\tShould reject the same block twice.", success)

		if err := db.CheckCandidate(block); err != nil {
			t.Fatalf("\t%s\tShould accept a known parent as a candidate: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a known parent as a candidate.", success)
	}
}

func Test_QueryByType(t *testing.T) {
	t.Log("Given the need to query records by kind.")
	{
		db := openMemory(t, database.Config{Difficulty: 0, GenesisTimestamp: genesisTime})

		tx1 := newRecord(t, database.KindTransaction, map[string]any{"n": 1})
		tx2 := newRecord(t, database.KindTransaction, map[string]any{"n": 2})
		ev := newRecord(t, database.KindEvent, map[string]any{"n": 3})

		batch, err := database.NewBatch([]database.Record{tx2, ev})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a batch: %v", failed, err)
		}

		for _, r := range []database.Record{tx1, batch} {
			if _, err := db.AppendMined(context.Background(), r); err != nil {
				t.Fatalf("\t%s\tShould be able to append: %v", failed, err)
			}
		}

		txs := db.GetTransactionsByType(database.KindTransaction)
		if len(txs) != 2 {
			t.Fatalf("\t%s\tShould find two transactions: %d", failed, len(txs))
		}
		t.Logf("\t%s\tShould find two transactions.", success)

		if string(txs[0].Payload) != `{"n":1}` || string(txs[1].Payload) != `{"n":2}` {
			t.Fatalf("\t%s\tShould return them in chain order.", failed)
		}
		t.Logf("\t%s\tShould return them in chain order.", success)

		if got := db.GetByType(database.KindEvent); len(got) != 1 || got[0].Data.Type != database.KindBatch {
			t.Fatalf("\t%s\tShould find the batch block carrying the event.", failed)
		}
		t.Logf("\t%s\tShould find the batch block carrying the event.", success)

		if got := db.GetTransactionsByType(database.KindFile); len(got) != 0 {
			t.Fatalf("\t%s\tShould find nothing for an unused kind.", failed)
		}
		t.Logf("\t%s\tShould find nothing for an unused kind.", success)
	}
}

func Test_ReloadOrder(t *testing.T) {
	t.Log("Given the need to reload blocks sharing a timestamp.")
	{
		store := memory.New()

		db, err := database.Open(database.Config{Storage: store, GenesisTimestamp: genesisTime})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open: %v", failed, err)
		}
		genesis := db.LatestBlock()

		b1 := database.NewBlock(genesisTime, newRecord(t, database.KindEvent, map[string]any{"n": 1}), genesis.Hash)
		b2 := database.NewBlock(genesisTime, newRecord(t, database.KindEvent, map[string]any{"n": 2}), b1.Hash)
		b3 := database.NewBlock(genesisTime, newRecord(t, database.KindEvent, map[string]any{"n": 3}), b2.Hash)

		// Store the blocks out of chain order.
		for _, b := range []database.Block{b3, b1, b2} {
			if err := store.Write(b); err != nil {
				t.Fatalf("\t%s\tShould be able to write: %v", failed, err)
			}
		}

		db, err = database.Open(database.Config{Storage: store})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen: %v", failed, err)
		}

		blocks := db.GetAll()
		exp := []string{genesis.Hash, b1.Hash, b2.Hash, b3.Hash}
		if len(blocks) != len(exp) {
			t.Fatalf("\t%s\tShould reload %d blocks: %d", failed, len(exp), len(blocks))
		}

		for i := range exp {
			if blocks[i].Hash != exp[i] {
				t.Fatalf("\t%s\tShould reload block %d by linkage.", failed, i)
			}
		}
		t.Logf("\t%s\tShould reload the blocks by linkage.", success)

		if !db.IsValid() {
			t.Fatalf("\t%s\tShould have a valid chain.", failed)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)
	}
}

func Test_MalformedBlock(t *testing.T) {
	t.Log("Given the need to handle a malformed block file.")
	{
		path := t.TempDir()

		db := openDisk(t, path, database.Config{GenesisTimestamp: genesisTime})
		db.Close()

		if err := os.WriteFile(filepath.Join(path, "garbage.json"), []byte("{not json"), 0600); err != nil {
			t.Fatalf("\t%s\tShould be able to write a bad file: %v", failed, err)
		}

		db = openDisk(t, path, database.Config{})
		if db.Length() != 1 {
			t.Fatalf("\t%s\tShould skip the malformed block.", failed)
		}
		t.Logf("\t%s\tShould skip the malformed block.", success)

		store, err := disk.New(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open storage: %v", failed, err)
		}

		if _, err := database.Open(database.Config{Storage: store, Strict: true}); err == nil {
			t.Fatalf("\t%s\tShould fail to open in strict mode.", failed)
		}
		t.Logf("\t%s\tShould fail to open in strict mode.", success)
	}
}

// =============================================================================

func openMemory(t *testing.T, cfg database.Config) *database.Database {
	t.Helper()

	cfg.Storage = memory.New()

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Should be able to open the database: %v", err)
	}

	return db
}

func openDisk(t *testing.T, path string, cfg database.Config) *database.Database {
	t.Helper()

	store, err := disk.New(path)
	if err != nil {
		t.Fatalf("Should be able to open the storage: %v", err)
	}
	cfg.Storage = store

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Should be able to open the database: %v", err)
	}

	return db
}

func mineOn(t *testing.T, db *database.Database, r database.Record) database.Block {
	t.Helper()

	block, err := db.AppendMined(context.Background(), r)
	if err != nil {
		t.Fatalf("Should be able to mine: %v", err)
	}

	return block
}

package wallet_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet/storage/disk"
	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const kennedy = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"

type recorder struct {
	records []database.Record
}

func (r *recorder) Submit(record database.Record) int {
	r.records = append(r.records, record)
	return len(r.records)
}

func publicKey(t *testing.T, hexKey string) string {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load the key: %v", err)
	}

	return signature.NewECDSA(pk).PublicKey()
}

// =============================================================================

func TestManager(t *testing.T) {
	type table struct {
		name  string
		store func(t *testing.T) wallet.Store
	}

	tt := []table{
		{
			name:  "memory",
			store: func(t *testing.T) wallet.Store { return memory.New() },
		},
		{
			name: "disk",
			store: func(t *testing.T) wallet.Store {
				d, err := disk.New(t.TempDir())
				if err != nil {
					t.Fatalf("Should be able to open the wallet store: %v", err)
				}
				return d
			},
		},
	}

	t.Log("Given the need to manage wallets.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen using the %s store.", testID, tst.name)
			{
				f := func(t *testing.T) {
					rec := recorder{}
					act := accounts.New(genesis.Genesis{Balances: map[string]uint64{kennedy: 1000}}, nil)

					mgr, err := wallet.New(wallet.Config{
						Store:    tst.store(t),
						Recorder: &rec,
						Balances: act,
					})
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the manager: %v", failed, testID, err)
					}

					pub := publicKey(t, "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")

					w, err := mgr.Create(pub, "kennedy")
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to create a wallet: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to create a wallet.", success, testID)

					if w.Address != kennedy || w.Balance != 1000 {
						t.Fatalf("\t%s\tTest %d:\tShould derive the address and balance: %s %d", failed, testID, w.Address, w.Balance)
					}
					t.Logf("\t%s\tTest %d:\tShould derive the address and balance.", success, testID)

					if _, err := mgr.Import(pub, "again"); !errors.Is(err, wallet.ErrExists) {
						t.Fatalf("\t%s\tTest %d:\tShould reject a duplicate wallet: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould reject a duplicate wallet.", success, testID)

					other := publicKey(t, "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0")
					if _, err := mgr.Import(other, "other"); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to import a wallet: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to import a wallet.", success, testID)

					list, err := mgr.List()
					if err != nil || len(list) != 2 {
						t.Fatalf("\t%s\tTest %d:\tShould list two wallets: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould list two wallets.", success, testID)

					if err := mgr.Remove(kennedy); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to remove a wallet: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to remove a wallet.", success, testID)

					if _, err := mgr.Get(kennedy); !errors.Is(err, wallet.ErrNotFound) {
						t.Fatalf("\t%s\tTest %d:\tShould not find a removed wallet: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould not find a removed wallet.", success, testID)

					exp := []database.Kind{database.KindWalletCreation, database.KindWalletImport, database.KindWalletRemoval}
					if len(rec.records) != len(exp) {
						t.Fatalf("\t%s\tTest %d:\tShould record %d audit records, got %d.", failed, testID, len(exp), len(rec.records))
					}
					for i, kind := range exp {
						if rec.records[i].Type != kind {
							t.Fatalf("\t%s\tTest %d:\tShould record %s at %d, got %s.", failed, testID, kind, i, rec.records[i].Type)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould record the audit records.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := wallet.NormalizeAddress("0xdd6b972ffcc631a62cae1bb9d80b7ff429c8eba4")
	if err != nil || addr != kennedy {
		t.Fatalf("Should return the checksum form, got %q: %v", addr, err)
	}

	if _, err := wallet.NormalizeAddress("kennedy"); !errors.Is(err, wallet.ErrInvalidAddress) {
		t.Fatalf("Should reject an invalid address: %v", err)
	}
}

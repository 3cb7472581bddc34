// Package accounts maintains the native account balances computed by
// replaying the transaction records of the chain.
package accounts

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/balance"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// Tx is the payload of a transaction record. An empty from address issues
// new currency, which is how validator rewards are paid.
type Tx struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Timestamp int64  `json:"timestamp"`
	Memo      string `json:"memo,omitempty"`
}

// IsIssuance reports whether the transaction creates new currency.
func (tx Tx) IsIssuance() bool {
	return tx.From == ""
}

// NewRecord constructs a transaction record signed by every signer.
func NewRecord(tx Tx, signers ...signature.Signer) (database.Record, error) {
	record, err := database.NewRecord(database.KindTransaction, tx, len(signers))
	if err != nil {
		return database.Record{}, err
	}

	for _, signer := range signers {
		if err := record.Sign(signer); err != nil {
			return database.Record{}, fmt.Errorf("signing transaction: %w", err)
		}
	}

	return record, nil
}

// =============================================================================

// Accounts manages the balances of the accounts who have transacted on
// the blockchain.
type Accounts struct {
	mu          sync.Mutex
	genesis     genesis.Genesis
	authorities map[string]bool
	sheet       *balance.Sheet
	evHandler   func(v string, args ...any)
}

// New constructs the accounts with the genesis balances.
func New(gen genesis.Genesis, evHandler func(v string, args ...any)) *Accounts {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	authorities := make(map[string]bool)
	for _, addr := range gen.Authorities {
		authorities[strings.ToLower(addr)] = true
	}

	return &Accounts{
		genesis:     gen,
		authorities: authorities,
		sheet:       balance.NewSheet(gen.Balances),
		evHandler:   evHandler,
	}
}

// Reset re-initalizes the accounts back to the genesis information.
func (act *Accounts) Reset() {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.sheet.Reset(act.genesis.Balances)
}

// Recompute resets the balances and replays the transaction records in
// order. Records that can't be applied are skipped.
func (act *Accounts) Recompute(records []database.Record) {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.sheet.Reset(act.genesis.Balances)

	for i, record := range records {
		if err := act.apply(record); err != nil {
			act.evHandler("accounts: Recompute: WARNING: record[%d]: %s", i, err)
		}
	}
}

// ApplyTransaction performs the business logic for applying a transaction
// record to the balances.
func (act *Accounts) ApplyTransaction(record database.Record) error {
	act.mu.Lock()
	defer act.mu.Unlock()

	return act.apply(record)
}

// Balance returns the balance of the address.
func (act *Accounts) Balance(address string) uint64 {
	return act.sheet.Balance(address)
}

// Copy makes a copy of the non zero balances.
func (act *Accounts) Copy() map[string]uint64 {
	return act.sheet.Copy()
}

// =============================================================================

// apply validates the record and updates the sheet. The caller must hold
// the lock.
func (act *Accounts) apply(record database.Record) error {
	if record.Type != database.KindTransaction {
		return fmt.Errorf("invalid record kind %q", record.Type)
	}

	var tx Tx
	if err := record.DecodePayload(&tx); err != nil {
		return fmt.Errorf("decoding transaction: %w", err)
	}

	if tx.To == "" || tx.Amount == 0 {
		return errors.New("invalid transaction, a to address and amount are required")
	}

	signers := signerAddresses(record)

	if tx.IsIssuance() {
		if len(act.authorities) > 0 && !act.anyAuthority(signers) {
			return errors.New("invalid issuance, not signed by an authority")
		}

		return act.sheet.Credit(tx.To, tx.Amount)
	}

	if !signers[strings.ToLower(tx.From)] {
		return fmt.Errorf("invalid transaction, not signed by %s", tx.From)
	}

	if strings.EqualFold(tx.From, tx.To) {
		return fmt.Errorf("invalid transaction, sending money to yourself, from %s, to %s", tx.From, tx.To)
	}

	if tx.Fee > math.MaxUint64-tx.Amount {
		return fmt.Errorf("invalid transaction, amount %d plus fee %d overflows", tx.Amount, tx.Fee)
	}

	if !act.sheet.CanCredit(tx.To, tx.Amount) {
		return fmt.Errorf("invalid transaction, %s can't receive %d: %w", tx.To, tx.Amount, balance.ErrOverflow)
	}

	if err := act.sheet.Debit(tx.From, tx.Amount+tx.Fee); err != nil {
		return err
	}

	return act.sheet.Credit(tx.To, tx.Amount)
}

func (act *Accounts) anyAuthority(signers map[string]bool) bool {
	for addr := range signers {
		if act.authorities[addr] {
			return true
		}
	}
	return false
}

// signerAddresses returns the lower cased addresses of the record signers.
func signerAddresses(record database.Record) map[string]bool {
	addrs := make(map[string]bool)
	for _, sig := range record.Signatures {
		addr, err := signature.ToAddress(sig.PublicKey)
		if err != nil {
			continue
		}
		addrs[strings.ToLower(addr)] = true
	}
	return addrs
}

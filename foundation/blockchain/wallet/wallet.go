// Package wallet manages the wallets known to the node. A wallet only holds
// public material, its balance is projected from the chain.
package wallet

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
)

// Set of error variables for wallet operations.
var (
	ErrNotFound       = errors.New("wallet not found")
	ErrExists         = errors.New("wallet already exists")
	ErrInvalidAddress = errors.New("invalid address")
)

// Wallet represents an account known to the node.
type Wallet struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Label     string `json:"label"`
	Balance   uint64 `json:"balance"`
	CreatedAt int64  `json:"createdAt"`
}

// Store represents the behavior required to persist wallets.
type Store interface {
	Save(w Wallet) error
	Load(address string) (Wallet, error)
	LoadAll() ([]Wallet, error)
	Delete(address string) error
}

// Recorder represents the behavior required to record audit records.
type Recorder interface {
	Submit(record database.Record) int
}

// Balances represents the behavior required to look up the native balance
// of an address.
type Balances interface {
	Balance(address string) uint64
}

// event is the payload of the wallet audit records.
type event struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey,omitempty"`
	Label     string `json:"label,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// =============================================================================

// Config represents the configuration required to construct a manager.
type Config struct {
	Store     Store
	Recorder  Recorder
	Balances  Balances
	Signer    signature.Signer // When nil the audit records are not signed.
	Now       func() time.Time
	EvHandler func(v string, args ...any)
}

// Manager maintains the wallets of the node.
type Manager struct {
	mu        sync.Mutex
	store     Store
	recorder  Recorder
	balances  Balances
	signer    signature.Signer
	now       func() time.Time
	evHandler func(v string, args ...any)
}

// New constructs a wallet manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Recorder == nil || cfg.Balances == nil {
		return nil, errors.New("store, recorder and balances are required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := Manager{
		store:     cfg.Store,
		recorder:  cfg.Recorder,
		balances:  cfg.Balances,
		signer:    cfg.Signer,
		now:       now,
		evHandler: ev,
	}

	return &m, nil
}

// Create registers a new wallet for the public key.
func (m *Manager) Create(publicKey string, label string) (Wallet, error) {
	return m.add(database.KindWalletCreation, publicKey, label)
}

// Import registers a wallet for a key that was generated elsewhere.
func (m *Manager) Import(publicKey string, label string) (Wallet, error) {
	return m.add(database.KindWalletImport, publicKey, label)
}

// Remove forgets the wallet. The balance stays in the chain.
func (m *Manager) Remove(address string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.Load(addr); err != nil {
		return err
	}

	record, err := m.newRecord(database.KindWalletRemoval, event{Address: addr, Timestamp: m.now().UnixMilli()})
	if err != nil {
		return err
	}

	if err := m.store.Delete(addr); err != nil {
		return fmt.Errorf("deleting wallet: %w", err)
	}

	m.recorder.Submit(record)

	m.evHandler("wallet: Remove: address[%s]", addr)

	return nil
}

// Get returns the wallet with its current balance.
func (m *Manager) Get(address string) (Wallet, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return Wallet{}, err
	}

	w, err := m.store.Load(addr)
	if err != nil {
		return Wallet{}, err
	}

	w.Balance = m.balances.Balance(w.Address)

	return w, nil
}

// List returns every wallet with its current balance ordered by creation.
func (m *Manager) List() ([]Wallet, error) {
	wallets, err := m.store.LoadAll()
	if err != nil {
		return nil, err
	}

	for i := range wallets {
		wallets[i].Balance = m.balances.Balance(wallets[i].Address)
	}

	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt != wallets[j].CreatedAt {
			return wallets[i].CreatedAt < wallets[j].CreatedAt
		}
		return wallets[i].Address < wallets[j].Address
	})

	return wallets, nil
}

// NormalizeAddress validates the address and returns its checksum form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return common.HexToAddress(address).Hex(), nil
}

// =============================================================================

func (m *Manager) add(kind database.Kind, publicKey string, label string) (Wallet, error) {
	addr, err := signature.ToAddress(publicKey)
	if err != nil {
		return Wallet{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = m.store.Load(addr)
	switch {
	case err == nil:
		return Wallet{}, fmt.Errorf("%w: %s", ErrExists, addr)
	case !errors.Is(err, ErrNotFound):
		return Wallet{}, err
	}

	w := Wallet{
		Address:   addr,
		PublicKey: publicKey,
		Label:     label,
		CreatedAt: m.now().UnixMilli(),
	}

	record, err := m.newRecord(kind, event{Address: addr, PublicKey: publicKey, Label: label, Timestamp: w.CreatedAt})
	if err != nil {
		return Wallet{}, err
	}

	if err := m.store.Save(w); err != nil {
		return Wallet{}, fmt.Errorf("saving wallet: %w", err)
	}

	m.recorder.Submit(record)

	m.evHandler("wallet: %s: address[%s]", kind, addr)

	w.Balance = m.balances.Balance(addr)

	return w, nil
}

func (m *Manager) newRecord(kind database.Kind, ev event) (database.Record, error) {
	required := 0
	if m.signer != nil {
		required = 1
	}

	record, err := database.NewRecord(kind, ev, required)
	if err != nil {
		return database.Record{}, err
	}

	if m.signer != nil {
		if err := record.Sign(m.signer); err != nil {
			return database.Record{}, fmt.Errorf("signing record: %w", err)
		}
	}

	return record, nil
}

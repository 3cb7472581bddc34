// Package memory implements the ability to keep wallets in memory.
package memory

import (
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
)

// Memory stores wallets in a map. This implements the wallet.Store
// interface.
type Memory struct {
	mu      sync.RWMutex
	wallets map[string]wallet.Wallet
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		wallets: make(map[string]wallet.Wallet),
	}
}

// Save stores the wallet.
func (m *Memory) Save(w wallet.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wallets[w.Address] = w
	return nil
}

// Load returns the wallet for the address.
func (m *Memory) Load(address string) (wallet.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, exists := m.wallets[address]
	if !exists {
		return wallet.Wallet{}, wallet.ErrNotFound
	}

	return w, nil
}

// LoadAll returns every stored wallet.
func (m *Memory) LoadAll() ([]wallet.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]wallet.Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		out = append(out, w)
	}

	return out, nil
}

// Delete removes the wallet.
func (m *Memory) Delete(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.wallets[address]; !exists {
		return wallet.ErrNotFound
	}

	delete(m.wallets, address)
	return nil
}

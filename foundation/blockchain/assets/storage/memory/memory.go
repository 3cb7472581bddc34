// Package memory implements the ability to keep asset definitions in memory.
package memory

import (
	"sort"
	"sync"

	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
)

// Memory stores asset definitions in a map. This implements the
// assets.Store interface.
type Memory struct {
	mu     sync.RWMutex
	assets map[string]assets.Asset
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		assets: make(map[string]assets.Asset),
	}
}

// Save stores the asset definition, replacing any previous version.
func (m *Memory) Save(asset assets.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets[asset.ID] = asset
	return nil
}

// Load returns the asset with the specified id.
func (m *Memory) Load(id string) (assets.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	asset, exists := m.assets[id]
	if !exists {
		return assets.Asset{}, assets.ErrNotStored
	}

	return asset, nil
}

// LoadAll returns every stored asset ordered by id.
func (m *Memory) LoadAll() ([]assets.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]assets.Asset, 0, len(m.assets))
	for _, asset := range m.assets {
		out = append(out, asset)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time         `json:"date"`             // Timestamp of the genesis block, shared by every node.
	ChainID         uint16            `json:"chain_id"`         // The chain id represents an unique id for this running instance.
	TransPerBlock   uint16            `json:"trans_per_block"`  // The maximum number of records that can be in a batch block.
	Difficulty      uint16            `json:"difficulty"`       // How difficult it needs to be to solve the work problem.
	ValidatorReward uint64            `json:"validator_reward"` // Reward issued to the validator of a block.
	Balances        map[string]uint64 `json:"balances"`         // Opening native balances by wallet address.
	Authorities     []string          `json:"authorities"`      // Addresses allowed to issue native currency, empty allows any.
}

// Default returns the genesis values used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:            time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:         1,
		TransPerBlock:   10,
		Difficulty:      2,
		ValidatorReward: 10,
		Balances:        map[string]uint64{},
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	if genesis.Difficulty > 64 {
		return Genesis{}, fmt.Errorf("difficulty %d is larger than the hash length", genesis.Difficulty)
	}

	if genesis.Balances == nil {
		genesis.Balances = map[string]uint64{}
	}

	return genesis, nil
}

// Timestamp returns the genesis date in epoch milliseconds. Zero is
// returned when no date is set.
func (g Genesis) Timestamp() int64 {
	if g.Date.IsZero() {
		return 0
	}
	return g.Date.UnixMilli()
}

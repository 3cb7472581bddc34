package commands

import (
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Verify walks the chain and checks every link.
func Verify(db *database.Database) error {
	if err := db.Validate(); err != nil {
		return fmt.Errorf("chain invalid: %w", err)
	}

	fmt.Printf("Chain valid: blocks[%d]  tip[%s]\n", db.Length(), db.LatestBlock().Hash)

	return nil
}

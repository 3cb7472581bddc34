package state

import "github.com/ardanlabs/peerledger/foundation/blockchain/database"

// Kind names the type of a notification.
type Kind string

// Set of notification kinds.
const (
	BlockMined     Kind = "block:mined"
	BlockValidated Kind = "block:validated"
	BlockImported  Kind = "block:imported"
)

// Notification is published after a block enters the chain. The
// validator address is only set for block:validated.
type Notification struct {
	Kind             Kind           `json:"kind"`
	BlockHash        string         `json:"blockHash"`
	ValidatorAddress string         `json:"validatorAddress,omitempty"`
	Timestamp        int64          `json:"timestamp"`
	Block            database.Block `json:"block"`
}

package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// MessageKind identifies the type of a protocol message.
type MessageKind string

// Set of protocol message kinds.
const (
	KindNewBlock           MessageKind = "NEW_BLOCK"
	KindSyncRequest        MessageKind = "SYNC_REQUEST"
	KindSyncResponse       MessageKind = "SYNC_RESPONSE"
	KindValidateBlock      MessageKind = "VALIDATE_BLOCK"
	KindValidationResponse MessageKind = "VALIDATION_RESPONSE"
	KindConsensusRequest   MessageKind = "CONSENSUS_REQUEST"
	KindConsensusResponse  MessageKind = "CONSENSUS_RESPONSE"
)

// Kinds returns every message kind the protocol handles.
func Kinds() []MessageKind {
	return []MessageKind{
		KindNewBlock,
		KindSyncRequest,
		KindSyncResponse,
		KindValidateBlock,
		KindValidationResponse,
		KindConsensusRequest,
		KindConsensusResponse,
	}
}

// Message is the envelope a transport carries between nodes.
type Message struct {
	Kind MessageKind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage creates a new message with the given kind and payload.
func NewMessage(kind MessageKind, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s: %w", kind, err)
	}

	return Message{Kind: kind, Data: data}, nil
}

// =============================================================================

// NewBlockData announces a block that was added to the sender's chain.
type NewBlockData struct {
	Hash   string `json:"hash"`
	NodeID string `json:"nodeId"`
}

// SyncRequestData asks the peers for the blocks after the hash.
type SyncRequestData struct {
	LatestBlockHash string `json:"latestBlockHash"`
	NodeID          string `json:"nodeId"`
}

// SyncResponseData answers a sync request from the target node.
type SyncResponseData struct {
	Blocks       []database.Block `json:"blocks"`
	TargetNodeID string           `json:"targetNodeId"`
}

// ValidateBlockData asks the peers to validate a block.
type ValidateBlockData struct {
	Block       database.Block `json:"block"`
	RequesterID string         `json:"requesterId"`
}

// ValidationResponseData answers a validation request from the target node.
type ValidationResponseData struct {
	Validation   ValidationResult `json:"validation"`
	TargetNodeID string           `json:"targetNodeId"`
}

// =============================================================================

// Status is the verdict of a validation.
type Status string

// Set of validation statuses.
const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// ValidationResult is the verdict of one node about one block.
type ValidationResult struct {
	BlockHash   string `json:"blockHash"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	ValidatorID string `json:"validatorId"`
}

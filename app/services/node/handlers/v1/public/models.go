package public

import (
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

type chain struct {
	Length     int              `json:"length"`
	Difficulty int              `json:"difficulty"`
	Valid      bool             `json:"valid"`
	Blocks     []database.Block `json:"blocks"`
}

type pool struct {
	Pending int               `json:"pending"`
	Records []database.Record `json:"records"`
}

type submitted struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

type mining struct {
	AutoMining bool   `json:"autoMining"`
	Pending    int    `json:"pending"`
	Validator  string `json:"validator"`
}

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Balance uint64 `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latestBlock"`
	Pending     int       `json:"pending"`
	Balances    []balance `json:"balances"`
}

type newWallet struct {
	PublicKey string `json:"publicKey" validate:"required"`
	Label     string `json:"label"`
}

type mint struct {
	To     string `json:"to" validate:"required"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type transfer struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type burn struct {
	From   string `json:"from" validate:"required"`
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type newFile struct {
	Name string `json:"name" validate:"required"`
	Data []byte `json:"data" validate:"required"`
}

type storedFile struct {
	BlockHash string `json:"blockHash"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Size      int    `json:"size"`
}

type newEncrypted struct {
	Type database.Kind `json:"type" validate:"required"`
	Data []byte        `json:"data" validate:"required"`
}

type storedEncrypted struct {
	BlockHash string `json:"blockHash"`
	Key       string `json:"key"`
}

type decryptRequest struct {
	Key string `json:"key" validate:"required"`
}

type decrypted struct {
	BlockHash string        `json:"blockHash"`
	Index     int           `json:"index"`
	Type      database.Kind `json:"type"`
	Data      []byte        `json:"data"`
}

package assets

// Asset is the definition of an issued asset. TotalSupply is the only field
// that changes after creation.
type Asset struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Decimals    uint8             `json:"decimals"`
	TotalSupply uint64            `json:"totalSupply"`
	Creator     string            `json:"creator"`
	Description string            `json:"description"`
	CreatedAt   int64             `json:"createdAt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewAsset contains the information needed to create an asset.
type NewAsset struct {
	Name        string            `json:"name" validate:"required"`
	Symbol      string            `json:"symbol" validate:"required"`
	Decimals    uint8             `json:"decimals" validate:"lte=18"`
	TotalSupply uint64            `json:"totalSupply" validate:"required,gt=0"`
	Description string            `json:"description"`
	Creator     string            `json:"creator" validate:"required"`
	Metadata    map[string]string `json:"metadata"`
}

// TxType names the operation of an asset transaction.
type TxType string

// Set of asset transaction types.
const (
	TxMint     TxType = "mint"
	TxTransfer TxType = "transfer"
	TxBurn     TxType = "burn"
)

// Tx is an asset operation. It is the payload of an asset_transaction
// record.
type Tx struct {
	Type      TxType `json:"type"`
	AssetID   string `json:"assetId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// signingContent is the part of the transaction covered by its signature.
func (tx Tx) signingContent() Tx {
	tx.Signature = ""
	return tx
}

// Package assets maintains the issued assets and their balances. Asset
// definitions are persisted by a Store, balances are computed from the
// asset transactions recorded in the chain.
package assets

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/balance"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// Store represents the behavior required to persist asset definitions.
type Store interface {
	Save(asset Asset) error
	Load(id string) (Asset, error)
	LoadAll() ([]Asset, error)
}

// ErrNotStored is returned by a Store when the asset doesn't exist.
var ErrNotStored = errors.New("asset not stored")

// Chain represents the behavior required to replay the asset transactions.
type Chain interface {
	GetTransactionsByType(kind database.Kind) []database.Record
	UnminedRecords() []database.Record
}

// Recorder represents the behavior required to record audit records.
type Recorder interface {
	Submit(record database.Record) int
}

// =============================================================================

// Config represents the configuration required to construct a ledger.
type Config struct {
	Store     Store
	Chain     Chain
	Recorder  Recorder
	Signer    signature.Signer // When nil the transactions are not signed.
	Now       func() time.Time
	EvHandler func(v string, args ...any)
}

// Ledger manages the assets and the balances of every holder.
type Ledger struct {
	mu        sync.RWMutex
	store     Store
	chain     Chain
	recorder  Recorder
	signer    signature.Signer
	now       func() time.Time
	evHandler func(v string, args ...any)

	assets   map[string]Asset
	balances map[string]*balance.Sheet
}

// New constructs a ledger, loading the stored definitions and computing
// the balances from the chain.
func New(cfg Config) (*Ledger, error) {
	if cfg.Store == nil || cfg.Chain == nil || cfg.Recorder == nil {
		return nil, errors.New("store, chain and recorder are required")
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

	stored, err := cfg.Store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}

	l := Ledger{
		store:     cfg.Store,
		chain:     cfg.Chain,
		recorder:  cfg.Recorder,
		signer:    cfg.Signer,
		now:       now,
		evHandler: ev,
		assets:    make(map[string]Asset),
		balances:  make(map[string]*balance.Sheet),
	}

	for _, asset := range stored {
		l.assets[asset.ID] = asset
	}

	l.RecomputeAllBalances()

	return &l, nil
}

// CreateAsset persists a new asset definition, records it in the chain and
// mints the total supply to the creator.
func (l *Ledger) CreateAsset(na NewAsset) (Asset, error) {
	if na.Name == "" || na.Symbol == "" {
		return Asset{}, errors.New("name and symbol are required")
	}
	if na.Creator == "" {
		return Asset{}, newError(ErrInvalidAddress, "creator is required")
	}
	if na.TotalSupply == 0 {
		return Asset{}, newError(ErrInvalidAmount, "total supply must be greater than zero")
	}

	createdAt := l.now().UnixMilli()

	asset := Asset{
		ID:          assetID(na.Name, na.Symbol, na.Creator, createdAt),
		Name:        na.Name,
		Symbol:      na.Symbol,
		Decimals:    na.Decimals,
		TotalSupply: na.TotalSupply,
		Creator:     na.Creator,
		Description: na.Description,
		CreatedAt:   createdAt,
		Metadata:    na.Metadata,
	}

	record, err := l.newRecord(database.KindAssetCreation, asset)
	if err != nil {
		return Asset{}, err
	}

	l.mu.Lock()
	{
		if _, exists := l.assets[asset.ID]; exists {
			l.mu.Unlock()
			return Asset{}, newError(ErrAssetExists, "id %s", asset.ID)
		}

		if err := l.store.Save(asset); err != nil {
			l.mu.Unlock()
			return Asset{}, fmt.Errorf("saving asset: %w", err)
		}

		l.assets[asset.ID] = asset
		l.balances[asset.ID] = balance.NewSheet(nil)
	}
	l.mu.Unlock()

	l.recorder.Submit(record)

	l.evHandler("assets: CreateAsset: asset[%s]: symbol[%s]: supply[%d]", asset.ID, asset.Symbol, asset.TotalSupply)

	if _, err := l.Mint(asset.ID, asset.Creator, asset.TotalSupply); err != nil {
		return Asset{}, fmt.Errorf("minting supply: %w", err)
	}

	return asset, nil
}

// Mint credits the amount to the address. The total supply of the asset
// doesn't change.
func (l *Ledger) Mint(assetID string, to string, amount uint64) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sheet, err := l.sheet(assetID)
	if err != nil {
		return Tx{}, err
	}
	if to == "" {
		return Tx{}, newError(ErrInvalidAddress, "to address is required")
	}
	if amount == 0 {
		return Tx{}, newError(ErrInvalidAmount, "amount must be greater than zero")
	}
	if !sheet.CanCredit(to, amount) {
		return Tx{}, newError(ErrInvalidAmount, "%s can't receive %d", to, amount)
	}

	tx, err := l.record(Tx{Type: TxMint, AssetID: assetID, To: to, Amount: amount})
	if err != nil {
		return Tx{}, err
	}

	if err := sheet.Credit(to, amount); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Transfer moves the amount between the addresses.
func (l *Ledger) Transfer(assetID string, from string, to string, amount uint64) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sheet, err := l.sheet(assetID)
	if err != nil {
		return Tx{}, err
	}
	if from == "" || to == "" {
		return Tx{}, newError(ErrInvalidAddress, "from and to addresses are required")
	}
	if amount == 0 {
		return Tx{}, newError(ErrInvalidAmount, "amount must be greater than zero")
	}
	if bal := sheet.Balance(from); bal < amount {
		return Tx{}, newError(ErrInsufficientBalance, "%s has %d, needs %d", from, bal, amount)
	}
	if from != to && !sheet.CanCredit(to, amount) {
		return Tx{}, newError(ErrInvalidAmount, "%s can't receive %d", to, amount)
	}

	tx, err := l.record(Tx{Type: TxTransfer, AssetID: assetID, From: from, To: to, Amount: amount})
	if err != nil {
		return Tx{}, err
	}

	if err := sheet.Transfer(from, to, amount); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Burn destroys the amount held by the address and lowers the total supply
// of the asset.
func (l *Ledger) Burn(assetID string, from string, amount uint64) (Tx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sheet, err := l.sheet(assetID)
	if err != nil {
		return Tx{}, err
	}
	if from == "" {
		return Tx{}, newError(ErrInvalidAddress, "from address is required")
	}
	if amount == 0 {
		return Tx{}, newError(ErrInvalidAmount, "amount must be greater than zero")
	}
	if bal := sheet.Balance(from); bal < amount {
		return Tx{}, newError(ErrInsufficientBalance, "%s has %d, needs %d", from, bal, amount)
	}

	asset := l.assets[assetID]
	if asset.TotalSupply < amount {
		return Tx{}, newError(ErrInvalidAmount, "amount %d exceeds total supply %d", amount, asset.TotalSupply)
	}
	asset.TotalSupply -= amount

	tx := Tx{Type: TxBurn, AssetID: assetID, From: from, Amount: amount}
	record, tx, err := l.newTxRecord(tx)
	if err != nil {
		return Tx{}, err
	}

	if err := l.store.Save(asset); err != nil {
		return Tx{}, fmt.Errorf("saving asset: %w", err)
	}
	l.assets[assetID] = asset

	l.recorder.Submit(record)

	if err := sheet.Debit(from, amount); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// BalanceOf returns the amount of the asset held by the address.
func (l *Ledger) BalanceOf(assetID string, address string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sheet, exists := l.balances[assetID]
	if !exists {
		return 0
	}

	return sheet.Balance(address)
}

// BalancesOf returns the non zero balances of the address keyed by asset id.
func (l *Ledger) BalancesOf(address string) map[string]uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]uint64)
	for id, sheet := range l.balances {
		if bal := sheet.Balance(address); bal > 0 {
			out[id] = bal
		}
	}

	return out
}

// Holders returns the non zero balances of the asset keyed by address.
func (l *Ledger) Holders(assetID string) (map[string]uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sheet, err := l.sheet(assetID)
	if err != nil {
		return nil, err
	}

	return sheet.Copy(), nil
}

// GetAsset returns the definition of the asset.
func (l *Ledger) GetAsset(assetID string) (Asset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	asset, exists := l.assets[assetID]
	if !exists {
		return Asset{}, newError(ErrAssetNotFound, "id %s", assetID)
	}

	return asset, nil
}

// GetAllAssets returns every asset ordered by creation time.
func (l *Ledger) GetAllAssets() []Asset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Asset, 0, len(l.assets))
	for _, asset := range l.assets {
		out = append(out, asset)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// RecomputeAllBalances clears every balance and replays the asset
// transactions of the chain in chain order, followed by the asset
// transactions still waiting to be mined.
func (l *Ledger) RecomputeAllBalances() {

	// Read the unmined records first. A record mined in between then shows
	// up in both sets and is replayed once.
	unmined := decodeTxs(l.chain.UnminedRecords(), l.evHandler)
	mined := decodeTxs(l.chain.GetTransactionsByType(database.KindAssetTransaction), l.evHandler)

	waiting := make(map[Tx]int)
	for _, tx := range unmined {
		waiting[tx]++
	}

	seen := make(map[Tx]int)
	for _, tx := range mined {
		if seen[tx] < waiting[tx] {
			seen[tx]++
		}
	}

	txs := mined
	for _, tx := range unmined {
		if seen[tx] > 0 {
			seen[tx]--
			continue
		}
		txs = append(txs, tx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[string]*balance.Sheet)
	for id := range l.assets {
		l.balances[id] = balance.NewSheet(nil)
	}

	for i, tx := range txs {
		sheet, exists := l.balances[tx.AssetID]
		if !exists {
			l.evHandler("assets: RecomputeAllBalances: WARNING: tx[%d]: unknown asset[%s]", i, tx.AssetID)
			continue
		}

		if err := apply(sheet, tx); err != nil {
			l.evHandler("assets: RecomputeAllBalances: WARNING: tx[%d]: %s", i, err)
		}
	}

	l.evHandler("assets: RecomputeAllBalances: assets[%d]: mined[%d]: unmined[%d]", len(l.assets), len(mined), len(txs)-len(mined))
}

// decodeTxs returns the asset transactions carried by the records, skipping
// records of other kinds.
func decodeTxs(records []database.Record, ev func(v string, args ...any)) []Tx {
	txs := make([]Tx, 0, len(records))
	for i, record := range records {
		if record.Type != database.KindAssetTransaction {
			continue
		}

		var tx Tx
		if err := record.DecodePayload(&tx); err != nil {
			ev("assets: RecomputeAllBalances: WARNING: record[%d]: %s", i, err)
			continue
		}
		txs = append(txs, tx)
	}

	return txs
}

// =============================================================================

// apply performs the balance change of the transaction.
func apply(sheet *balance.Sheet, tx Tx) error {
	switch tx.Type {
	case TxMint:
		return sheet.Credit(tx.To, tx.Amount)
	case TxTransfer:
		return sheet.Transfer(tx.From, tx.To, tx.Amount)
	case TxBurn:
		return sheet.Debit(tx.From, tx.Amount)
	}

	return fmt.Errorf("unknown transaction type %q", tx.Type)
}

// sheet returns the balances of the asset. The caller must hold the lock.
func (l *Ledger) sheet(assetID string) (*balance.Sheet, error) {
	if _, exists := l.assets[assetID]; !exists {
		return nil, newError(ErrAssetNotFound, "id %s", assetID)
	}

	sheet, exists := l.balances[assetID]
	if !exists {
		sheet = balance.NewSheet(nil)
		l.balances[assetID] = sheet
	}

	return sheet, nil
}

// record signs the transaction and submits its audit record.
func (l *Ledger) record(tx Tx) (Tx, error) {
	record, tx, err := l.newTxRecord(tx)
	if err != nil {
		return Tx{}, err
	}

	l.recorder.Submit(record)

	return tx, nil
}

// newTxRecord timestamps and signs the transaction and wraps it in a
// record.
func (l *Ledger) newTxRecord(tx Tx) (database.Record, Tx, error) {
	tx.Timestamp = l.now().UnixMilli()

	if l.signer != nil {
		data, err := signature.Canonical(tx.signingContent())
		if err != nil {
			return database.Record{}, Tx{}, err
		}

		sig, err := l.signer.Sign(data)
		if err != nil {
			return database.Record{}, Tx{}, fmt.Errorf("signing transaction: %w", err)
		}
		tx.Signature = sig.Signature
	}

	record, err := l.newRecord(database.KindAssetTransaction, tx)
	if err != nil {
		return database.Record{}, Tx{}, err
	}

	return record, tx, nil
}

// newRecord constructs an audit record signed by the ledger signer.
func (l *Ledger) newRecord(kind database.Kind, payload any) (database.Record, error) {
	required := 0
	if l.signer != nil {
		required = 1
	}

	record, err := database.NewRecord(kind, payload, required)
	if err != nil {
		return database.Record{}, err
	}

	if l.signer != nil {
		if err := record.Sign(l.signer); err != nil {
			return database.Record{}, fmt.Errorf("signing record: %w", err)
		}
	}

	return record, nil
}

// assetID derives the id of an asset.
func assetID(name string, symbol string, creator string, createdAt int64) string {
	return signature.HashBytes(
		[]byte(name),
		[]byte(symbol),
		[]byte(creator),
		[]byte(strconv.FormatInt(createdAt, 10)),
	)
}

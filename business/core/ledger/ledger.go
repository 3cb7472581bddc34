// Package ledger provides the core business API of a node. It ties the
// chain state to the projections computed from it and to the peers.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
	"github.com/ardanlabs/peerledger/foundation/blockchain/blobstore"
	"github.com/ardanlabs/peerledger/foundation/blockchain/cipher"
	"github.com/ardanlabs/peerledger/foundation/blockchain/consensus"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ardanlabs/peerledger/foundation/blockchain/state"
	"github.com/ardanlabs/peerledger/foundation/events"
)

// Set of error variables for core operations.
var (
	ErrNoProtocol   = errors.New("node is not connected to a peer protocol")
	ErrFileNotFound = errors.New("file not found")
	ErrBadRecord    = errors.New("record rejected")
)

// File is the payload of a file record. The content lives in the blob
// store under the hash.
type File struct {
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Size      int    `json:"size"`
	Timestamp int64  `json:"timestamp"`
}

// Config represents the systems the core needs.
type Config struct {
	State     *state.State
	Accounts  *accounts.Accounts
	Assets    *assets.Ledger
	Blobs     blobstore.ContentStore
	Cipher    cipher.Cipher
	Signer    signature.Signer
	Protocol  *consensus.Protocol // Nil when the node runs alone.
	EvHandler func(v string, args ...any)
}

// Core manages the set of APIs for ledger access.
type Core struct {
	state     *state.State
	accounts  *accounts.Accounts
	assets    *assets.Ledger
	blobs     blobstore.ContentStore
	cipher    cipher.Cipher
	signer    signature.Signer
	protocol  *consensus.Protocol
	evHandler func(v string, args ...any)
}

// New constructs a core and computes the native balances from the chain.
func New(cfg Config) (*Core, error) {
	if cfg.State == nil || cfg.Accounts == nil || cfg.Assets == nil {
		return nil, errors.New("state, accounts and assets are required")
	}
	if cfg.Blobs == nil || cfg.Cipher == nil || cfg.Signer == nil {
		return nil, errors.New("blobs, cipher and signer are required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	c := Core{
		state:     cfg.State,
		accounts:  cfg.Accounts,
		assets:    cfg.Assets,
		blobs:     cfg.Blobs,
		cipher:    cfg.Cipher,
		signer:    cfg.Signer,
		protocol:  cfg.Protocol,
		evHandler: ev,
	}

	c.accounts.Recompute(c.state.GetTransactionsByType(database.KindTransaction))

	return &c, nil
}

// SetProtocol attaches the peer protocol once the transport is running.
func (c *Core) SetProtocol(p *consensus.Protocol) {
	c.protocol = p
}

// Subscribe registers the core handlers for the chain notifications.
func (c *Core) Subscribe(notes *events.Events[state.Notification]) {
	notes.Subscribe("ledger", c.HandleNotification)
}

// HandleNotification keeps the projections current and tells the peers
// about mined blocks.
func (c *Core) HandleNotification(n state.Notification) {
	switch n.Kind {
	case state.BlockMined:
		c.applyBlock(n.Block)

		if c.protocol != nil {
			if err := c.protocol.AnnounceBlock(n.Block); err != nil {
				c.evHandler("ledger: HandleNotification: WARNING: announce blk[%s]: %s", n.BlockHash, err)
			}
		}

	case state.BlockImported:
		c.accounts.Recompute(c.state.GetTransactionsByType(database.KindTransaction))
		c.assets.RecomputeAllBalances()

	case state.BlockValidated:
		if err := c.rewardValidator(n); err != nil {
			c.evHandler("ledger: HandleNotification: WARNING: reward blk[%s]: %s", n.BlockHash, err)
		}
	}
}

// =============================================================================

// SubmitRecord checks the signatures of the record and adds it to the pool.
func (c *Core) SubmitRecord(record database.Record) (int, error) {
	if record.Type == database.KindBatch {
		return 0, fmt.Errorf("%w: batch records are built by the miner", ErrBadRecord)
	}

	if err := c.state.VerifyRecord(record); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadRecord, err)
	}

	return c.state.Submit(record), nil
}

// AddRecordImmediate checks the signatures of the record and mines it into
// its own block right away.
func (c *Core) AddRecordImmediate(ctx context.Context, record database.Record) (database.Block, error) {
	if record.Type == database.KindBatch {
		return database.Block{}, fmt.Errorf("%w: batch records are built by the miner", ErrBadRecord)
	}

	if err := c.state.VerifyRecord(record); err != nil {
		return database.Block{}, fmt.Errorf("%w: %s", ErrBadRecord, err)
	}

	return c.state.AddBlockImmediate(ctx, record)
}

// StoreFile keeps the content in the blob store and mines a file record
// for it right away.
func (c *Core) StoreFile(ctx context.Context, name string, data []byte) (database.Block, File, error) {
	hash, err := c.blobs.Store(data)
	if err != nil {
		return database.Block{}, File{}, fmt.Errorf("storing blob: %w", err)
	}

	file := File{
		Name:      name,
		Hash:      hash,
		Size:      len(data),
		Timestamp: time.Now().UnixMilli(),
	}

	record, err := database.NewRecord(database.KindFile, file, 1)
	if err != nil {
		return database.Block{}, File{}, err
	}

	if err := record.Sign(c.signer); err != nil {
		return database.Block{}, File{}, fmt.Errorf("signing record: %w", err)
	}

	block, err := c.state.AddBlockImmediate(ctx, record)
	if err != nil {
		return database.Block{}, File{}, err
	}

	return block, file, nil
}

// RetrieveFile returns the content stored for the hash.
func (c *Core) RetrieveFile(hash string) ([]byte, error) {
	data, exists, err := c.blobs.Retrieve(hash)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, ErrFileNotFound
	}

	return data, nil
}

// StoreEncrypted seals the plaintext and mines it right away. The returned
// key is the only way to read the payload back.
func (c *Core) StoreEncrypted(ctx context.Context, kind database.Kind, plaintext []byte) (database.Block, string, error) {
	record, key, err := cipher.NewRecord(c.cipher, kind, plaintext, 1)
	if err != nil {
		return database.Block{}, "", err
	}

	if err := record.Sign(c.signer); err != nil {
		return database.Block{}, "", fmt.Errorf("signing record: %w", err)
	}

	block, err := c.state.AddBlockImmediate(ctx, record)
	if err != nil {
		return database.Block{}, "", err
	}

	return block, key, nil
}

// Decrypt returns every record of the chain the key can open.
func (c *Core) Decrypt(key string) []cipher.Decrypted {
	return cipher.DecryptRecords(c.cipher, c.state.GetAll(), key)
}

// Proof returns the merkle proof for the record at the index of the block.
func (c *Core) Proof(blockHash string, index int) (merkle.Proof, error) {
	block, err := c.state.GetByHash(blockHash)
	if err != nil {
		return merkle.Proof{}, err
	}

	tree, err := merkle.ForBlock(block)
	if err != nil {
		return merkle.Proof{}, err
	}

	return tree.Proof(index)
}

// ValidateWithPeers asks the peers to validate the block and waits for the
// tally.
func (c *Core) ValidateWithPeers(ctx context.Context, blockHash string) (consensus.Result, error) {
	if c.protocol == nil {
		return consensus.Result{}, ErrNoProtocol
	}

	block, err := c.state.GetByHash(blockHash)
	if err != nil {
		return consensus.Result{}, err
	}

	if err := c.protocol.RequestValidation(block); err != nil {
		return consensus.Result{}, err
	}

	return c.protocol.CheckConsensus(ctx, blockHash)
}

// Sync asks the peers for the blocks this node is missing.
func (c *Core) Sync() error {
	if c.protocol == nil {
		return ErrNoProtocol
	}

	return c.protocol.RequestSync()
}

// =============================================================================

// applyBlock applies the transaction records of a block mined by this node.
func (c *Core) applyBlock(block database.Block) {
	for i, record := range block.Records() {
		if record.Type != database.KindTransaction {
			continue
		}

		if err := c.accounts.ApplyTransaction(record); err != nil {
			c.evHandler("ledger: applyBlock: WARNING: blk[%s]: record[%d]: %s", block.Hash, i, err)
		}
	}
}

// rewardValidator submits the issuance record paying the validator of the
// block. Only blocks carrying a payment are rewarded so reward blocks don't
// reward themselves.
func (c *Core) rewardValidator(n state.Notification) error {
	reward := c.state.Genesis().ValidatorReward
	if reward == 0 || n.ValidatorAddress == "" {
		return nil
	}

	if !carriesPayment(n.Block) {
		return nil
	}

	tx := accounts.Tx{
		To:        n.ValidatorAddress,
		Amount:    reward,
		Timestamp: time.Now().UnixMilli(),
		Memo:      "validator reward: " + n.BlockHash,
	}

	record, err := accounts.NewRecord(tx, c.signer)
	if err != nil {
		return err
	}

	c.state.Submit(record)

	c.evHandler("ledger: rewardValidator: blk[%s]: validator[%s]: amount[%d]", n.BlockHash, n.ValidatorAddress, reward)

	return nil
}

// carriesPayment reports whether the block holds a transaction moving
// existing currency.
func carriesPayment(block database.Block) bool {
	for _, record := range block.Records() {
		if record.Type != database.KindTransaction {
			continue
		}

		var tx accounts.Tx
		if err := record.DecodePayload(&tx); err != nil {
			continue
		}

		if !tx.IsIssuance() {
			return true
		}
	}

	return false
}

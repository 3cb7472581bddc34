package database

import (
	"context"
	"strconv"
	"strings"

	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// miningCheckInterval is the number of nonce attempts between checks of
// the mining context for cancellation.
const miningCheckInterval = 4096

// maxDifficulty is the length of a hex encoded sha256 hash.
const maxDifficulty = 64

// =============================================================================

// Block represents a sealed unit of the chain.
type Block struct {
	Timestamp    int64  `json:"timestamp"`    // Epoch millis the block was created.
	Data         Record `json:"data"`         // The record or batch of records.
	PreviousHash string `json:"previousHash"` // Hash of the previous block in the chain.
	Hash         string `json:"hash"`         // Hash of this block.
	Nonce        uint64 `json:"nonce"`        // Value identified to solve the hash solution.
}

// NewBlock constructs an unmined block with the hash computed for nonce 0.
func NewBlock(timestamp int64, data Record, previousHash string) Block {
	b := Block{
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: previousHash,
	}
	b.Hash = ComputeHash(b)

	return b
}

// ComputeHash returns the hash of the previous hash, timestamp, canonical
// encoding of the data and nonce. An empty string is returned if the data
// can't be encoded, which never matches a stored hash.
func ComputeHash(b Block) string {
	data, err := signature.Canonical(b.Data)
	if err != nil {
		return ""
	}

	return hashParts(b.PreviousHash, b.Timestamp, data, b.Nonce)
}

// Mine searches for the nonce that produces a hash with difficulty leading
// zeros. The search starts from nonce 0. The context is checked periodically
// and on cancellation the block is left as it was before the call.
func (b *Block) Mine(ctx context.Context, difficulty int, ev func(v string, args ...any)) error {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("database: Mine: MINING: started: prevBlk[%s]: difficulty[%d]", b.PreviousHash, difficulty)
	defer ev("database: Mine: MINING: completed")

	data, err := signature.Canonical(b.Data)
	if err != nil {
		return err
	}

	for nonce := uint64(0); ; nonce++ {
		if nonce%miningCheckInterval == 0 {
			if ctx.Err() != nil {
				ev("database: Mine: MINING: CANCELLED: attempts[%d]", nonce)
				return ctx.Err()
			}
		}

		hash := hashParts(b.PreviousHash, b.Timestamp, data, nonce)
		if !isHashSolved(difficulty, hash) {
			continue
		}

		b.Nonce = nonce
		b.Hash = hash

		ev("database: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PreviousHash, hash, nonce+1)

		return nil
	}
}

// IsSelfConsistent reports whether the stored hash matches the recomputed
// hash. It does not check the proof of work.
func (b Block) IsSelfConsistent() bool {
	return b.Hash != "" && b.Hash == ComputeHash(b)
}

// IsHashSolved reports whether the hash has difficulty leading zeros.
func (b Block) IsHashSolved(difficulty int) bool {
	return isHashSolved(difficulty, b.Hash)
}

// HasEnoughSignatures is a count check of the block record's signatures.
func (b Block) HasEnoughSignatures() bool {
	return b.Data.HasEnoughSignatures()
}

// Records returns the records carried by the block, unwrapping a batch.
func (b Block) Records() []Record {
	return b.Data.Flatten()
}

// ValidateNext checks the block can extend the chain whose tip is the
// previous block. The checks run in order and stop at the first failure.
// When verify is nil only the signature count is checked.
func (b Block) ValidateNext(previous Block, difficulty int, verify signature.VerifyFunc, ev func(v string, args ...any)) error {
	ev("database: ValidateNext: validate: blk[%s]: check: block hash is self consistent", b.Hash)

	if !b.IsSelfConsistent() {
		return newReject(ReasonHashMismatch, b.Hash, "recomputed hash %s", ComputeHash(b))
	}

	ev("database: ValidateNext: validate: blk[%s]: check: previous hash does match tip", b.Hash)

	if b.PreviousHash != previous.Hash {
		return newReject(ReasonPreviousHash, b.Hash, "got %s, exp %s", b.PreviousHash, previous.Hash)
	}

	if err := b.validateSignatures(verify, ev); err != nil {
		return err
	}

	ev("database: ValidateNext: validate: blk[%s]: check: block hash has been solved", b.Hash)

	if !b.IsHashSolved(difficulty) {
		return newReject(ReasonDifficultyNotMet, b.Hash, "expected %d leading zeros", difficulty)
	}

	return nil
}

// validateSignatures performs the signature checks shared by every
// validation path.
func (b Block) validateSignatures(verify signature.VerifyFunc, ev func(v string, args ...any)) error {
	ev("database: validateSignatures: validate: blk[%s]: check: enough signatures", b.Hash)

	if !b.HasEnoughSignatures() {
		return newReject(ReasonInsufficientSigners, b.Hash, "got %d, required %d", len(b.Data.Signatures), b.Data.RequiredSigners)
	}

	if verify == nil {
		return nil
	}

	ev("database: validateSignatures: validate: blk[%s]: check: signatures verify", b.Hash)

	if err := b.Data.VerifySignatures(verify); err != nil {
		return newReject(ReasonInvalidSignature, b.Hash, "%s", err)
	}

	return nil
}

// =============================================================================

// hashParts produces the block hash for the specified parts.
func hashParts(previousHash string, timestamp int64, data []byte, nonce uint64) string {
	return signature.HashBytes(
		[]byte(previousHash),
		[]byte(strconv.FormatInt(timestamp, 10)),
		data,
		[]byte(strconv.FormatUint(nonce, 10)),
	)
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty int, hash string) bool {
	if difficulty <= 0 {
		return true
	}

	if difficulty > len(hash) {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == difficulty
}

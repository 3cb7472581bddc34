// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash is the previous hash sentinel used by the genesis block.
const ZeroHash = "0"

// =============================================================================

// Canonical returns the canonical encoding of the value. The value is
// marshaled to JSON and then re-encoded through a generic representation so
// every object key, at every depth, is sorted and no whitespace remains.
// Numbers are carried verbatim.
func Canonical(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	return json.Marshal(generic)
}

// Hash returns the sha256 hex string of the canonical encoding of the value.
func Hash(value any) string {
	data, err := Canonical(value)
	if err != nil {
		return ZeroHash
	}

	return HashBytes(data)
}

// HashBytes returns the sha256 hex string for the concatenation of the
// specified parts.
func HashBytes(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write(part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================

// Signature proves a signer attested to a specific byte payload.
type Signature struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// Signer represents the behavior required to produce signatures over data.
type Signer interface {
	Sign(data []byte) (Signature, error)
	PublicKey() string
}

// VerifyFunc verifies a hex signature for the data against a hex public key.
type VerifyFunc func(data []byte, sig string, publicKey string) bool

// =============================================================================

// ECDSA signs data with a secp256k1 private key.
type ECDSA struct {
	privateKey *ecdsa.PrivateKey
	publicKey  string
}

// NewECDSA constructs a signer for the specified private key.
func NewECDSA(privateKey *ecdsa.PrivateKey) *ECDSA {
	return &ECDSA{
		privateKey: privateKey,
		publicKey:  hexutil.Encode(crypto.CompressPubkey(&privateKey.PublicKey)),
	}
}

// PublicKey returns the compressed public key in hex.
func (e *ECDSA) PublicKey() string {
	return e.publicKey
}

// Sign uses the private key to sign the data.
func (e *ECDSA) Sign(data []byte) (Signature, error) {
	sig, err := crypto.Sign(stamp(data), e.privateKey)
	if err != nil {
		return Signature{}, err
	}

	return Signature{
		PublicKey: e.publicKey,
		Signature: hexutil.Encode(sig),
	}, nil
}

// Verify checks the signature was produced for the data by the private key
// behind the public key. Any decoding failure is treated as a failed
// verification.
func Verify(data []byte, sig string, publicKey string) bool {
	sigBytes, err := hexutil.Decode(sig)
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return false
	}

	pub, err := toPublicKey(publicKey)
	if err != nil {
		return false
	}

	// Recover the key from the signature and make sure it is the one claimed.
	recovered, err := crypto.SigToPub(stamp(data), sigBytes)
	if err != nil || !recovered.Equal(pub) {
		return false
	}

	return crypto.VerifySignature(crypto.FromECDSAPub(pub), stamp(data), sigBytes[:crypto.RecoveryIDOffset])
}

// ToAddress derives the account address for the hex public key. Both
// compressed and uncompressed keys are accepted.
func ToAddress(publicKey string) (string, error) {
	pub, err := toPublicKey(publicKey)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the ledger stamp embedded into the final hash.
func stamp(data []byte) []byte {
	dataHash := crypto.Keccak256(data)

	// Signatures we produce are always unique to this ledger.
	stamp := []byte("\x19Ledger Signed Message:\n32")

	return crypto.Keccak256(stamp, dataHash)
}

// toPublicKey decodes a hex public key in compressed or uncompressed form.
func toPublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	raw, err := hexutil.Decode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	switch len(raw) {
	case 33:
		return crypto.DecompressPubkey(raw)
	case 65:
		return crypto.UnmarshalPubkey(raw)
	}

	return nil, errors.New("invalid public key length")
}

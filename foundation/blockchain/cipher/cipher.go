// Package cipher seals record payloads with XChaCha20-Poly1305. The key
// never leaves the caller, records only carry the ciphertext and nonce.
package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned when the ciphertext can't be opened with the key.
var ErrDecrypt = errors.New("unable to decrypt")

// Sealed is the result of an encryption. IV and Key are hex encoded.
type Sealed struct {
	Ciphertext []byte
	IV         string
	Key        string
}

// Cipher represents the behavior required to seal and open payloads.
type Cipher interface {
	Encrypt(plaintext []byte) (Sealed, error)
	Decrypt(ciphertext []byte, iv string, key string) ([]byte, error)
}

// =============================================================================

// XChaCha implements the Cipher interface with a fresh random key for every
// encryption.
type XChaCha struct{}

// New constructs a XChaCha cipher.
func New() XChaCha {
	return XChaCha{}
}

// Encrypt seals the plaintext with a new random key and nonce.
func (XChaCha) Encrypt(plaintext []byte) (Sealed, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return Sealed{}, fmt.Errorf("generating key: %w", err)
	}

	return seal(plaintext, key)
}

// EncryptWithKey seals the plaintext with the hex key and a new nonce.
func (XChaCha) EncryptWithKey(plaintext []byte, key string) (Sealed, error) {
	raw, err := hexutil.Decode(key)
	if err != nil {
		return Sealed{}, fmt.Errorf("decoding key: %w", err)
	}

	return seal(plaintext, raw)
}

// Decrypt opens the ciphertext. Any failure is reported as ErrDecrypt.
func (XChaCha) Decrypt(ciphertext []byte, iv string, key string) ([]byte, error) {
	rawKey, err := hexutil.Decode(key)
	if err != nil {
		return nil, fmt.Errorf("%w: key: %s", ErrDecrypt, err)
	}

	nonce, err := hexutil.Decode(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %s", ErrDecrypt, err)
	}

	aead, err := chacha20poly1305.NewX(rawKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, err)
	}

	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrDecrypt, aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, err)
	}

	return plaintext, nil
}

func seal(plaintext []byte, key []byte) (Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := Sealed{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		IV:         hexutil.Encode(nonce),
		Key:        hexutil.Encode(key),
	}

	return sealed, nil
}

// =============================================================================

// NewRecord encrypts the plaintext and wraps it into an encrypted record.
// The returned key is required to read the payload back.
func NewRecord(c Cipher, kind database.Kind, plaintext []byte, requiredSigners int) (database.Record, string, error) {
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		return database.Record{}, "", err
	}

	record, err := database.NewEncryptedRecord(kind, sealed.Ciphertext, sealed.IV, requiredSigners)
	if err != nil {
		return database.Record{}, "", err
	}

	return record, sealed.Key, nil
}

// Decrypted is a record payload that was opened with a key.
type Decrypted struct {
	BlockHash string          `json:"blockHash"`
	Index     int             `json:"index"`
	Record    database.Record `json:"record"`
	Plaintext []byte          `json:"plaintext"`
}

// DecryptRecords walks the encrypted records of the blocks and returns the
// ones the key opens. Records that fail to decrypt are skipped.
func DecryptRecords(c Cipher, blocks []database.Block, key string) []Decrypted {
	var out []Decrypted

	for _, block := range blocks {
		for i, record := range block.Records() {
			if !record.IsEncrypted() {
				continue
			}

			ciphertext, err := record.Ciphertext()
			if err != nil {
				continue
			}

			plaintext, err := c.Decrypt(ciphertext, record.Encryption.IV, key)
			if err != nil {
				continue
			}

			out = append(out, Decrypted{
				BlockHash: block.Hash,
				Index:     i,
				Record:    record,
				Plaintext: plaintext,
			})
		}
	}

	return out
}

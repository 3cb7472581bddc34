package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

// Kind identifies the logical kind of a record. The set of constants below
// are the well known kinds. Any other value is a custom kind which is carried
// opaquely.
type Kind string

// Set of well known record kinds.
const (
	KindFile             Kind = "file"
	KindTransaction      Kind = "transaction"
	KindEvent            Kind = "event"
	KindIdentity         Kind = "identity"
	KindCustom           Kind = "custom"
	KindAssetTransaction Kind = "asset_transaction"
	KindAssetCreation    Kind = "asset_creation"
	KindWalletCreation   Kind = "wallet_creation"
	KindWalletImport     Kind = "wallet_import"
	KindWalletRemoval    Kind = "wallet_removal"
	KindBatch            Kind = "transaction_batch"
)

var knownKinds = map[Kind]bool{
	KindFile:             true,
	KindTransaction:      true,
	KindEvent:            true,
	KindIdentity:         true,
	KindCustom:           true,
	KindAssetTransaction: true,
	KindAssetCreation:    true,
	KindWalletCreation:   true,
	KindWalletImport:     true,
	KindWalletRemoval:    true,
	KindBatch:            true,
}

// IsKnown reports whether the kind is one of the well known kinds.
func (k Kind) IsKnown() bool {
	return knownKinds[k]
}

// =============================================================================

// EncryptionMethod names the cipher used to produce an encrypted payload.
type EncryptionMethod string

// MethodXChaCha20Poly1305 is the only supported encryption method.
const MethodXChaCha20Poly1305 EncryptionMethod = "xchacha20-poly1305"

// EncryptionInfo describes how an encrypted payload was produced. It never
// carries the key.
type EncryptionInfo struct {
	Method    EncryptionMethod `json:"method"`
	IV        string           `json:"iv"`
	Encrypted bool             `json:"encrypted"`
}

// =============================================================================

// ErrEncryptedPayload is returned when a caller asks to decode a payload
// that is still encrypted.
var ErrEncryptedPayload = errors.New("payload is encrypted")

// Record is the logical unit of user data stored in a block. A record of
// kind transaction_batch is the batch variant and carries the sub-records as
// its payload.
type Record struct {
	Type            Kind                  `json:"type"`
	Payload         json.RawMessage       `json:"payload"`
	Encryption      *EncryptionInfo       `json:"encryption,omitempty"`
	Signatures      []signature.Signature `json:"signatures"`
	RequiredSigners int                   `json:"requiredSigners"`
}

// NewRecord constructs an unsigned record of the specified kind. The payload
// is stored in its canonical encoding.
func NewRecord(kind Kind, payload any, requiredSigners int) (Record, error) {
	if requiredSigners < 0 {
		return Record{}, fmt.Errorf("required signers can't be negative: %d", requiredSigners)
	}

	data, err := signature.Canonical(payload)
	if err != nil {
		return Record{}, fmt.Errorf("encoding payload: %w", err)
	}

	r := Record{
		Type:            kind,
		Payload:         data,
		Signatures:      []signature.Signature{},
		RequiredSigners: requiredSigners,
	}

	return r, nil
}

// NewEncryptedRecord constructs a record whose payload is the base64 form of
// the ciphertext.
func NewEncryptedRecord(kind Kind, ciphertext []byte, iv string, requiredSigners int) (Record, error) {
	r, err := NewRecord(kind, ciphertext, requiredSigners)
	if err != nil {
		return Record{}, err
	}

	r.Encryption = &EncryptionInfo{
		Method:    MethodXChaCha20Poly1305,
		IV:        iv,
		Encrypted: true,
	}

	return r, nil
}

// NewBatch wraps the records into a single batch record. Batch records carry
// no signatures of their own.
func NewBatch(records []Record) (Record, error) {
	return NewRecord(KindBatch, records, 0)
}

// IsEncrypted reports whether the payload is ciphertext.
func (r Record) IsEncrypted() bool {
	return r.Encryption != nil && r.Encryption.Encrypted
}

// Batch returns the sub-records when this is a batch record.
func (r Record) Batch() ([]Record, bool) {
	if r.Type != KindBatch {
		return nil, false
	}

	var records []Record
	if err := json.Unmarshal(r.Payload, &records); err != nil {
		return nil, false
	}

	return records, true
}

// Flatten returns the sub-records of a batch record or the record itself.
func (r Record) Flatten() []Record {
	if records, ok := r.Batch(); ok {
		return records
	}

	return []Record{r}
}

// DecodePayload unmarshals a plain payload into the specified value.
func (r Record) DecodePayload(v any) error {
	if r.IsEncrypted() {
		return ErrEncryptedPayload
	}

	return json.Unmarshal(r.Payload, v)
}

// Ciphertext returns the raw ciphertext of an encrypted payload.
func (r Record) Ciphertext() ([]byte, error) {
	if !r.IsEncrypted() {
		return nil, errors.New("payload is not encrypted")
	}

	var ciphertext []byte
	if err := json.Unmarshal(r.Payload, &ciphertext); err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	return ciphertext, nil
}

// SigningBytes returns the bytes signers attest to. Signatures are not part
// of the signed content so they can be collected independently.
func (r Record) SigningBytes() ([]byte, error) {
	content := struct {
		Type            Kind            `json:"type"`
		Payload         json.RawMessage `json:"payload"`
		Encryption      *EncryptionInfo `json:"encryption,omitempty"`
		RequiredSigners int             `json:"requiredSigners"`
	}{
		Type:            r.Type,
		Payload:         r.Payload,
		Encryption:      r.Encryption,
		RequiredSigners: r.RequiredSigners,
	}

	return signature.Canonical(content)
}

// Sign adds a signature from the signer to the record.
func (r *Record) Sign(signer signature.Signer) error {
	data, err := r.SigningBytes()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(data)
	if err != nil {
		return err
	}

	r.Signatures = append(r.Signatures, sig)

	return nil
}

// HasEnoughSignatures is a count check of the signatures against the number
// of required signers.
func (r Record) HasEnoughSignatures() bool {
	return len(r.Signatures) >= r.RequiredSigners
}

// VerifySignatures verifies every signature of the record, and of every
// batch sub-record, against its claimed public key.
func (r Record) VerifySignatures(verify signature.VerifyFunc) error {
	data, err := r.SigningBytes()
	if err != nil {
		return err
	}

	for i, sig := range r.Signatures {
		if !verify(data, sig.Signature, sig.PublicKey) {
			return fmt.Errorf("signature %d from %s does not verify", i, sig.PublicKey)
		}
	}

	if records, ok := r.Batch(); ok {
		for i, sub := range records {
			if err := sub.VerifySignatures(verify); err != nil {
				return fmt.Errorf("batch record %d: %w", i, err)
			}
		}
	}

	return nil
}

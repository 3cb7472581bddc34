package cipher_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardanlabs/peerledger/foundation/blockchain/cipher"
	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestRoundTrip(t *testing.T) {
	t.Log("Given the need to seal and open payloads.")
	{
		c := cipher.New()
		plaintext := []byte(`{"patient":"bill","result":"negative"}`)

		sealed, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to encrypt.", success)

		if bytes.Contains(sealed.Ciphertext, []byte("bill")) {
			t.Fatalf("\t%s\tShould not leak the plaintext.", failed)
		}
		t.Logf("\t%s\tShould not leak the plaintext.", success)

		got, err := c.Decrypt(sealed.Ciphertext, sealed.IV, sealed.Key)
		if err != nil || !bytes.Equal(got, plaintext) {
			t.Fatalf("\t%s\tShould be able to decrypt: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to decrypt.", success)

		other, err := c.Encrypt([]byte("other"))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt: %v", failed, err)
		}

		if _, err := c.Decrypt(sealed.Ciphertext, sealed.IV, other.Key); !errors.Is(err, cipher.ErrDecrypt) {
			t.Fatalf("\t%s\tShould fail with the wrong key: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail with the wrong key.", success)
	}
}

func TestDecryptRecords(t *testing.T) {
	t.Log("Given the need to find the records a key can open.")
	{
		c := cipher.New()

		mine, key, err := cipher.NewRecord(c, database.KindFile, []byte("mine"), 0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build an encrypted record: %v", failed, err)
		}

		theirs, _, err := cipher.NewRecord(c, database.KindFile, []byte("theirs"), 0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build an encrypted record: %v", failed, err)
		}

		plain, err := database.NewRecord(database.KindEvent, map[string]string{"name": "plain"}, 0)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a record: %v", failed, err)
		}

		batch, err := database.NewBatch([]database.Record{theirs, plain, mine})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a batch: %v", failed, err)
		}

		blocks := []database.Block{
			database.NewBlock(1700000000000, batch, "abc"),
			database.NewBlock(1700000000001, theirs, "def"),
		}

		got := cipher.DecryptRecords(c, blocks, key)
		if len(got) != 1 {
			t.Fatalf("\t%s\tShould open exactly one record, got %d.", failed, len(got))
		}
		t.Logf("\t%s\tShould open exactly one record.", success)

		if string(got[0].Plaintext) != "mine" || got[0].Index != 2 || got[0].BlockHash != blocks[0].Hash {
			t.Fatalf("\t%s\tShould report the record location: %+v", failed, got[0])
		}
		t.Logf("\t%s\tShould report the record location.", success)

		if _, err := mine.Ciphertext(); err != nil {
			t.Fatalf("\t%s\tShould carry the ciphertext: %v", failed, err)
		}
		if err := mine.DecodePayload(new(any)); !errors.Is(err, database.ErrEncryptedPayload) {
			t.Fatalf("\t%s\tShould refuse to decode an encrypted payload: %v", failed, err)
		}
		t.Logf("\t%s\tShould refuse to decode an encrypted payload.", success)
	}
}

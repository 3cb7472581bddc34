package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/console/prompt"
	"github.com/ethereum/go-ethereum/crypto"
)

// Keystore decrypts a keystore file and saves its private key where the
// node loads its key from.
func Keystore(file string, keyPath string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	password, err := prompt.Stdin.PromptPassword("Please enter a password to decrypt the wallet: ")
	if err != nil {
		return err
	}

	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return fmt.Errorf("decrypting keystore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
		return err
	}

	if err := crypto.SaveECDSA(keyPath, key.PrivateKey); err != nil {
		return err
	}

	fmt.Printf("Node key written for account: %s\n", key.Address.Hex())

	return nil
}

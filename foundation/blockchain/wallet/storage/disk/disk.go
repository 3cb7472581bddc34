// Package disk implements the ability to read and write wallets to disk
// with each wallet stored in its own file named by the address.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/peerledger/foundation/blockchain/wallet"
)

const ext = ".json"

// Disk stores wallets as json files. This implements the wallet.Store
// interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Save writes the wallet. The balance is not persisted.
func (d *Disk) Save(w wallet.Wallet) error {
	w.Balance = 0

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(d.getPath(w.Address), data, 0600)
}

// Load reads the wallet for the address.
func (d *Disk) Load(address string) (wallet.Wallet, error) {
	data, err := os.ReadFile(d.getPath(address))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return wallet.Wallet{}, wallet.ErrNotFound
		}
		return wallet.Wallet{}, err
	}

	var w wallet.Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return wallet.Wallet{}, fmt.Errorf("%s: %w", address, err)
	}

	return w, nil
}

// LoadAll reads every stored wallet.
func (d *Disk) LoadAll() ([]wallet.Wallet, error) {
	files, err := filepath.Glob(filepath.Join(d.dbPath, "*"+ext))
	if err != nil {
		return nil, err
	}

	out := make([]wallet.Wallet, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var w wallet.Wallet
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		out = append(out, w)
	}

	return out, nil
}

// Delete removes the wallet file.
func (d *Disk) Delete(address string) error {
	err := os.Remove(d.getPath(address))
	if errors.Is(err, fs.ErrNotExist) {
		return wallet.ErrNotFound
	}

	return err
}

// getPath forms the path to the specified wallet.
func (d *Disk) getPath(address string) string {
	return filepath.Join(d.dbPath, address+ext)
}

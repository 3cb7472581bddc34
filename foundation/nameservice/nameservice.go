// Package nameservice reads a folder of key files and creates a name
// service lookup for the wallet addresses behind them.
package nameservice

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	names map[string]string
}

// New constructs a name service with the addresses of the .ecdsa files
// found under the root folder. The file name is the account name.
func New(root string) (*NameService, error) {
	ns := NameService{
		names: make(map[string]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
		ns.names[strings.ToLower(address)] = strings.TrimSuffix(filepath.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the address or the address itself when it
// has no name.
func (ns *NameService) Lookup(address string) string {
	name, exists := ns.names[strings.ToLower(address)]
	if !exists {
		return address
	}
	return name
}

// Copy returns a copy of the map of lower cased addresses and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.names))
	for address, name := range ns.names {
		cpy[address] = name
	}
	return cpy
}

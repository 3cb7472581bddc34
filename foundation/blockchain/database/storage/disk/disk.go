// Package disk implements the ability to read and write blocks to disk
// with each block stored in its own file named by the block hash.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
)

const ext = ".json"

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
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

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write stores the block on disk in the canonical encoding used for hashing,
// so the stored bytes can be verified on reload.
func (d *Disk) Write(block database.Block) error {
	data, err := signature.Canonical(block)
	if err != nil {
		return err
	}

	// Write to a temp file first so a crash never leaves a partial block.
	tmp := d.getPath(block.Hash) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, d.getPath(block.Hash))
}

// GetBlock reads the block with the specified hash from disk.
func (d *Disk) GetBlock(hash string) (database.Block, error) {
	return readBlock(d.getPath(hash))
}

// ForEach returns an iterator to walk through all the blocks on disk. The
// order is by file name, the database orders the blocks on load.
func (d *Disk) ForEach() database.Iterator {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return &DiskIterator{err: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		files = append(files, filepath.Join(d.dbPath, entry.Name()))
	}
	sort.Strings(files)

	return &DiskIterator{files: files}
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ext {
			continue
		}
		if err := os.Remove(filepath.Join(d.dbPath, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(hash string) string {
	return filepath.Join(d.dbPath, hash+ext)
}

// =============================================================================

// DiskIterator represents the iteration implementation for walking
// through and reading blocks on disk. This implements the database
// Iterator interface.
type DiskIterator struct {
	files   []string // Block files found when the iteration started.
	current int      // Index of the next file to read.
	err     error    // Error listing the directory, reported once.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (di *DiskIterator) Next() (database.Block, error) {
	if di.err != nil {
		err := di.err
		di.err = nil
		return database.Block{}, err
	}

	if di.current >= len(di.files) {
		di.eoc = true
		return database.Block{}, errors.New("end of chain")
	}

	file := di.files[di.current]
	di.current++

	return readBlock(file)
}

// Done returns the end of chain value.
func (di *DiskIterator) Done() bool {
	return di.eoc
}

// =============================================================================

// readBlock decodes a block file and checks the file name matches the hash.
func readBlock(path string) (database.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return database.Block{}, err
	}

	var block database.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return database.Block{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if name := strings.TrimSuffix(filepath.Base(path), ext); name != block.Hash {
		return database.Block{}, fmt.Errorf("%s: file name doesn't match block hash %s", filepath.Base(path), block.Hash)
	}

	return block, nil
}

// Package disk implements the ability to read and write asset definitions
// to disk with each asset stored in its own file named by the asset id.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ardanlabs/peerledger/foundation/blockchain/assets"
)

const ext = ".json"

// Disk stores asset definitions as json files. This implements the
// assets.Store interface.
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

// Save writes the asset definition, replacing any previous version.
func (d *Disk) Save(asset assets.Asset) error {
	data, err := json.MarshalIndent(asset, "", "  ")
	if err != nil {
		return err
	}

	tmp := d.getPath(asset.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, d.getPath(asset.ID))
}

// Load reads the asset with the specified id.
func (d *Disk) Load(id string) (assets.Asset, error) {
	asset, err := readAsset(d.getPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return assets.Asset{}, assets.ErrNotStored
	}

	return asset, err
}

// LoadAll reads every stored asset ordered by file name.
func (d *Disk) LoadAll() ([]assets.Asset, error) {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		files = append(files, filepath.Join(d.dbPath, entry.Name()))
	}
	sort.Strings(files)

	out := make([]assets.Asset, 0, len(files))
	for _, file := range files {
		asset, err := readAsset(file)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}

	return out, nil
}

// getPath forms the path to the specified asset.
func (d *Disk) getPath(id string) string {
	return filepath.Join(d.dbPath, id+ext)
}

// readAsset decodes an asset file.
func readAsset(path string) (assets.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return assets.Asset{}, err
	}

	var asset assets.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return assets.Asset{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return asset, nil
}

// Package blobstore provides content addressed storage for file payloads.
// Blobs are keyed by the sha256 of their content.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// ContentStore represents the behavior required to store and retrieve
// blobs by content hash.
type ContentStore interface {
	Store(data []byte) (string, error)
	Retrieve(hash string) ([]byte, bool, error)
}

// keyPrefix separates blobs from any other keys in the database.
var keyPrefix = []byte("blob:")

// LevelDB implements the ContentStore interface on top of leveldb.
type LevelDB struct {
	ldb       *leveldb.DB
	evHandler func(v string, args ...any)
}

// Open opens a leveldb instance at the path. If it doesn't exist, it is
// created. A corrupted database is recovered.
func Open(path string, evHandler func(v string, args ...any)) (*LevelDB, error) {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	options := opt.Options{
		Compression: opt.SnappyCompression,
	}

	ldb, err := leveldb.OpenFile(path, &options)

	var corrupted *ldberrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		evHandler("blobstore: Open: WARNING: corruption detected for path %s: %s", path, err)

		ldb, err = leveldb.RecoverFile(path, &options)
		if err != nil {
			return nil, fmt.Errorf("recovering blob store: %w", err)
		}

		evHandler("blobstore: Open: recovered from corruption for path %s", path)
	}

	if err != nil {
		return nil, err
	}

	return &LevelDB{ldb: ldb, evHandler: evHandler}, nil
}

// OpenMemory opens a leveldb instance kept in memory.
func OpenMemory() (*LevelDB, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{ldb: ldb, evHandler: func(string, ...any) {}}, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}

// Store saves the blob and returns its content hash. Storing the same
// content twice is a no-op.
func (db *LevelDB) Store(data []byte) (string, error) {
	hash := Hash(data)
	key := blobKey(hash)

	exists, err := db.ldb.Has(key, nil)
	if err != nil {
		return "", err
	}

	if !exists {
		if err := db.ldb.Put(key, data, nil); err != nil {
			return "", err
		}
		db.evHandler("blobstore: Store: hash[%s]: size[%d]", hash, len(data))
	}

	return hash, nil
}

// Retrieve returns the blob for the content hash. The boolean is false when
// the blob doesn't exist.
func (db *LevelDB) Retrieve(hash string) ([]byte, bool, error) {
	data, err := db.ldb.Get(blobKey(hash), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return data, true, nil
}

// Hash returns the content hash of the data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func blobKey(hash string) []byte {
	return append(append([]byte{}, keyPrefix...), hash...)
}

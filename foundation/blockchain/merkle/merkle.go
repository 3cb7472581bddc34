// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and reduced to record proofs.

// Package merkle provides a merkle tree over the records of a batch block
// so a single record can be proven to be part of the block.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ardanlabs/peerledger/foundation/blockchain/database"
	"github.com/ardanlabs/peerledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of values for the order of a proof hash.
const (
	Left  = 0 // Proof hash is concatenated first.
	Right = 1 // Proof hash is concatenated second.
)

// Proof is the set of sibling hashes needed to walk from a leaf to the root.
type Proof struct {
	Index  int      `json:"index"`
	Leaf   string   `json:"leaf"`
	Hashes []string `json:"hashes"`
	Order  []int    `json:"order"`
	Root   string   `json:"root"`
}

// =============================================================================

// Tree represents a merkle tree built from leaf hashes.
type Tree struct {
	Root  *Node
	Leafs []*Node
}

// NewTree constructs a tree from the leaf hashes. An odd leaf count is
// completed by duplicating the last leaf.
func NewTree(leafHashes [][]byte) (*Tree, error) {
	if len(leafHashes) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	var t Tree
	for _, h := range leafHashes {
		t.Leafs = append(t.Leafs, &Node{Hash: h, leaf: true})
	}

	if len(t.Leafs)%2 == 1 {
		last := t.Leafs[len(t.Leafs)-1]
		t.Leafs = append(t.Leafs, &Node{Hash: last.Hash, leaf: true, dup: true})
	}

	t.Root = buildIntermediate(t.Leafs)

	return &t, nil
}

// ForRecords constructs a tree whose leafs are the canonical hashes of the
// records.
func ForRecords(records []database.Record) (*Tree, error) {
	leafs := make([][]byte, len(records))
	for i, record := range records {
		h, err := RecordHash(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		leafs[i] = h
	}

	return NewTree(leafs)
}

// ForBlock constructs the tree for the records carried by the block.
func ForBlock(block database.Block) (*Tree, error) {
	return ForRecords(block.Data.Flatten())
}

// RecordHash returns the sha256 of the canonical encoding of the record.
func RecordHash(record database.Record) ([]byte, error) {
	data, err := signature.Canonical(record)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return sum[:], nil
}

// RootHex converts the merkle root to a hex encoded string.
func (t *Tree) RootHex() string {
	return hexutil.Encode(t.Root.Hash)
}

// Proof returns the sibling hashes and their concatenation order for the
// leaf at the index.
func (t *Tree) Proof(index int) (Proof, error) {
	if index < 0 || index >= t.size() {
		return Proof{}, fmt.Errorf("leaf index %d out of range", index)
	}

	node := t.Leafs[index]
	proof := Proof{
		Index: index,
		Leaf:  hexutil.Encode(node.Hash),
		Root:  t.RootHex(),
	}

	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if parent.Left == node {
			proof.Hashes = append(proof.Hashes, hexutil.Encode(parent.Right.Hash))
			proof.Order = append(proof.Order, Right)
		} else {
			proof.Hashes = append(proof.Hashes, hexutil.Encode(parent.Left.Hash))
			proof.Order = append(proof.Order, Left)
		}
		node = parent
	}

	return proof, nil
}

// Verify recomputes every level of the tree and checks the root.
func (t *Tree) Verify() error {
	if !bytes.Equal(t.Root.verify(), t.Root.Hash) {
		return errors.New("root hash invalid")
	}

	return nil
}

// size returns the number of leafs without the duplicate.
func (t *Tree) size() int {
	if t.Leafs[len(t.Leafs)-1].dup {
		return len(t.Leafs) - 1
	}
	return len(t.Leafs)
}

// VerifyProof walks the proof from the leaf hash and reports whether it
// ends at the root.
func VerifyProof(proof Proof) error {
	if len(proof.Hashes) != len(proof.Order) {
		return errors.New("proof hashes and order differ in length")
	}

	current, err := hexutil.Decode(proof.Leaf)
	if err != nil {
		return fmt.Errorf("decoding leaf: %w", err)
	}

	for i, hexHash := range proof.Hashes {
		sibling, err := hexutil.Decode(hexHash)
		if err != nil {
			return fmt.Errorf("decoding proof hash %d: %w", i, err)
		}

		switch proof.Order[i] {
		case Left:
			current = hashPair(sibling, current)
		case Right:
			current = hashPair(current, sibling)
		default:
			return fmt.Errorf("invalid order %d at %d", proof.Order[i], i)
		}
	}

	if hexutil.Encode(current) != proof.Root {
		return errors.New("proof does not end at the root")
	}

	return nil
}

// =============================================================================

// Node represents a node, root, or leaf in the tree.
type Node struct {
	Parent *Node
	Left   *Node
	Right  *Node
	Hash   []byte
	leaf   bool
	dup    bool
}

// verify walks down the tree calculating the hash at each level.
func (n *Node) verify() []byte {
	if n.leaf {
		return n.Hash
	}

	return hashPair(n.Left.verify(), n.Right.verify())
}

// String returns a string representation of the node.
func (n *Node) String() string {
	return fmt.Sprintf("%t %t %s", n.leaf, n.dup, hexutil.Encode(n.Hash))
}

// buildIntermediate constructs the levels above the nodes and returns the
// root.
func buildIntermediate(nl []*Node) *Node {
	var nodes []*Node

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if right == len(nl) {
			right = i
		}

		n := Node{
			Left:  nl[left],
			Right: nl[right],
			Hash:  hashPair(nl[left].Hash, nl[right].Hash),
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n
		}
	}

	return buildIntermediate(nodes)
}

// hashPair returns the sha256 of the concatenation.
func hashPair(left []byte, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// Package merkle builds binary hash trees over hex-encoded SHA-256 digests.
//
// Pairs are combined order-independently: the two child digests are sorted as
// strings, concatenated, and hashed. Proofs therefore carry sibling digests
// only, with no left/right flags. This is not a positional Merkle tree and is
// not interchangeable with one; roots that have already been anchored depend
// on the rule staying exactly as it is.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// EmptyRoot is the root of a tree built from zero leaves. It is a sentinel,
// never a value to anchor.
const EmptyRoot = ""

var (
	// ErrEmptyTree is returned when a proof is requested from an empty tree.
	ErrEmptyTree = errors.New("merkle tree is empty")

	// ErrIndexOutOfRange is returned when a proof is requested for a leaf
	// index the tree does not have.
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// Tree is an immutable Merkle tree. Levels[0] holds the leaves and the last
// level holds the root alone.
type Tree struct {
	Levels [][]string `json:"levels"`
	Root   string     `json:"root"`
}

// Proof is the sibling path from a leaf to the root.
type Proof struct {
	Leaf     string   `json:"leaf"`
	Index    int      `json:"index"`
	Siblings []string `json:"siblings"`
}

// HashPair combines two digests: SHA-256 over the lexicographically smaller
// digest followed by the larger one.
func HashPair(a, b string) string {
	if b < a {
		a, b = b, a
	}
	h := sha256.New()
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// Build constructs a tree over leaves in the given order. An odd node at any
// level is paired with itself. A single leaf still yields one combining level,
// so its root is HashPair(leaf, leaf).
func Build(leaves []string) *Tree {
	if len(leaves) == 0 {
		return &Tree{Root: EmptyRoot}
	}

	level := make([]string, len(leaves))
	copy(level, leaves)
	levels := [][]string{level}

	for {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPair(level[i], right))
		}
		levels = append(levels, next)
		level = next
		if len(level) == 1 {
			break
		}
	}

	return &Tree{Levels: levels, Root: level[0]}
}

// Empty reports whether the tree was built from zero leaves.
func (t *Tree) Empty() bool {
	return t == nil || len(t.Levels) == 0
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	if t.Empty() {
		return 0
	}
	return len(t.Levels[0])
}

// Prove returns the inclusion proof for the leaf at index. A node without a
// right neighbour contributes itself as its sibling.
func Prove(t *Tree, index int) (*Proof, error) {
	if t.Empty() {
		return nil, ErrEmptyTree
	}
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("%w: %d (tree has %d leaves)", ErrIndexOutOfRange, index, t.Len())
	}

	p := &Proof{
		Leaf:     t.Levels[0][index],
		Index:    index,
		Siblings: make([]string, 0, len(t.Levels)-1),
	}
	pos := index
	for _, level := range t.Levels[:len(t.Levels)-1] {
		sib := pos ^ 1
		if sib >= len(level) {
			sib = pos
		}
		p.Siblings = append(p.Siblings, level[sib])
		pos /= 2
	}
	return p, nil
}

// Verify folds leaf with each sibling using HashPair and compares the result
// with root. The empty root never verifies.
func Verify(leaf string, siblings []string, root string) bool {
	if root == EmptyRoot {
		return false
	}
	h := leaf
	for _, s := range siblings {
		h = HashPair(h, s)
	}
	return h == root
}

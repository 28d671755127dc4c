// Package merkleproof implements inclusion proofs against the additions and
// removals roots carried in a header block. Leaves are coin IDs; internal nodes
// are the double-SHA256 of the concatenated children. An odd node at any level
// is paired with itself, so a proof path always has one sibling per level.
package merkleproof

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
)

// Proof is the merkle path for a single leaf. Index is the position of the
// leaf in the original leaf set; the bit at level i selects whether the
// sibling at Path[i] sits to the left or the right.
type Proof struct {
	Index uint64           `json:"index"`
	Path  []chainhash.Hash `json:"path"`
}

// BuildMerkleRoot computes the merkle root over the given leaves. A single
// leaf is its own root. An empty leaf set has the zero hash as its root.
func BuildMerkleRoot(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return chainhash.Hash{}
	}

	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		level = nextLevel(level)
	}

	return level[0]
}

// GenerateProof builds the inclusion proof for the leaf at index.
func GenerateProof(leaves []chainhash.Hash, index int) (*Proof, error) {
	if len(leaves) == 0 {
		return nil, errors.NewInvalidArgumentError("cannot generate proof over empty leaf set")
	}

	if index < 0 || index >= len(leaves) {
		return nil, errors.NewInvalidArgumentError("leaf index %d out of range [0,%d)", index, len(leaves))
	}

	proof := &Proof{
		Index: uint64(index),
		Path:  make([]chainhash.Hash, 0, 8),
	}

	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)

	current := index

	for len(level) > 1 {
		sibling := current ^ 1
		if sibling >= len(level) {
			// Odd node pairs with itself.
			sibling = current
		}

		proof.Path = append(proof.Path, level[sibling])

		level = nextLevel(level)
		current >>= 1
	}

	return proof, nil
}

// VerifyProof recomputes the root from the leaf and the proof path and
// compares it with the expected root.
func VerifyProof(leaf chainhash.Hash, proof *Proof, root *chainhash.Hash) bool {
	if proof == nil || root == nil {
		return false
	}

	current := leaf
	index := proof.Index

	for _, sibling := range proof.Path {
		var combined []byte

		if index&1 == 1 {
			combined = append(sibling.CloneBytes(), current.CloneBytes()...)
		} else {
			combined = append(current.CloneBytes(), sibling.CloneBytes()...)
		}

		current = chainhash.DoubleHashH(combined)
		index >>= 1
	}

	return current.IsEqual(root)
}

func nextLevel(level []chainhash.Hash) []chainhash.Hash {
	next := make([]chainhash.Hash, 0, (len(level)+1)/2)

	for i := 0; i < len(level); i += 2 {
		right := i
		if i+1 < len(level) {
			right = i + 1
		}

		combined := append(level[i].CloneBytes(), level[right].CloneBytes()...)
		next = append(next, chainhash.DoubleHashH(combined))
	}

	return next
}

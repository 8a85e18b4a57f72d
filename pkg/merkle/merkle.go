// Package merkle builds the fixed-height childchain block tree and its
// inclusion proofs.
//
// The tree must agree with the rootchain verifier bit for bit:
//
//	leaf     = keccak256(0x00 || txbytes)
//	node     = keccak256(0x01 || left || right)
//	padding  = keccak256(33 zero bytes)
//
// A tree of height h always has 2^h leaves; slots beyond the real leaves
// hold the padding hash. An inclusion proof is the concatenation of the
// sibling hashes from the leaf level up to (not including) the root.
package merkle

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// MaxHeight bounds the number of padded leaves (2^MaxHeight).
const MaxHeight = 20

const (
	leafSalt = 0x00
	nodeSalt = 0x01
)

// NullHash fills unused leaf slots.
var NullHash = keccak(make([]byte, 33))

// ProofError is returned when a tree cannot be built or a leaf cannot be
// proven.
type ProofError struct {
	Code    string // Error code (e.g., ErrLeafNotFound)
	Message string // Human-readable error message
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("proof error [%s]: %s", e.Code, e.Message)
}

// Error codes used by ProofError.
const (
	ErrLeafNotFound  = "LEAF_NOT_FOUND" // Leaf is not part of the tree
	ErrInvalidHeight = "INVALID_HEIGHT" // Height too small for the leaves, or out of range
	ErrNoLeaves      = "NO_LEAVES"      // Tree needs at least one leaf
)

// Tree is an immutable merkle tree.
type Tree struct {
	height int
	levels [][]common.Hash // levels[0] are leaf hashes, levels[height] is the root
}

// NewTree builds a tree over the given encoded leaves.
//
// A height of 0 uses the minimum height ceil(log2(len(leaves))). A larger
// height may be forced to match the proof size the verifier expects; a
// height below the minimum is rejected.
func NewTree(leaves [][]byte, height int) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, &ProofError{Code: ErrNoLeaves, Message: "cannot build a tree without leaves"}
	}

	minHeight := MinHeight(len(leaves))
	if height == 0 {
		height = minHeight
	}
	if height < minHeight {
		return nil, &ProofError{
			Code:    ErrInvalidHeight,
			Message: fmt.Sprintf("height %d cannot hold %d leaves, minimum is %d", height, len(leaves), minHeight),
		}
	}
	if height > MaxHeight {
		return nil, &ProofError{
			Code:    ErrInvalidHeight,
			Message: fmt.Sprintf("height %d exceeds maximum %d", height, MaxHeight),
		}
	}

	level := make([]common.Hash, 1<<height)
	for i := range level {
		if i < len(leaves) {
			level[i] = HashLeaf(leaves[i])
		} else {
			level[i] = NullHash
		}
	}

	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = HashNode(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{height: height, levels: levels}, nil
}

// MinHeight returns ceil(log2(n)), the smallest height holding n leaves.
func MinHeight(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Height returns the height of the tree.
func (t *Tree) Height() int {
	return t.height
}

// Root returns the root hash.
func (t *Tree) Root() common.Hash {
	return t.levels[t.height][0]
}

// IndexOf returns the position of the first leaf equal to leaf.
func (t *Tree) IndexOf(leaf []byte) (int, error) {
	target := HashLeaf(leaf)
	for i, h := range t.levels[0] {
		if h == target {
			return i, nil
		}
	}
	return 0, &ProofError{Code: ErrLeafNotFound, Message: "argument is not a leaf in the tree"}
}

// InclusionProof returns the proof for leaf: height sibling hashes,
// bottom-up, 32 bytes each.
func (t *Tree) InclusionProof(leaf []byte) ([]byte, error) {
	index, err := t.IndexOf(leaf)
	if err != nil {
		return nil, err
	}
	return t.ProofAt(index)
}

// ProofAt returns the inclusion proof of the leaf at index.
func (t *Tree) ProofAt(index int) ([]byte, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, &ProofError{
			Code:    ErrLeafNotFound,
			Message: fmt.Sprintf("index %d outside tree of %d leaves", index, len(t.levels[0])),
		}
	}

	proof := make([]byte, 0, t.height*common.HashLength)
	for level := 0; level < t.height; level++ {
		sibling := index ^ 1
		proof = append(proof, t.levels[level][sibling].Bytes()...)
		index /= 2
	}
	return proof, nil
}

// VerifyProof checks that leaf sits at index under root.
func VerifyProof(root common.Hash, leaf []byte, index int, proof []byte) bool {
	if len(proof)%common.HashLength != 0 || index < 0 {
		return false
	}
	height := len(proof) / common.HashLength
	if height < bits.UintSize && index >= 1<<height {
		return false
	}

	computed := HashLeaf(leaf)
	for i := 0; i < height; i++ {
		sibling := common.BytesToHash(proof[i*common.HashLength : (i+1)*common.HashLength])
		if index%2 == 0 {
			computed = HashNode(computed, sibling)
		} else {
			computed = HashNode(sibling, computed)
		}
		index /= 2
	}
	return bytes.Equal(computed.Bytes(), root.Bytes())
}

// HashLeaf returns keccak256(0x00 || leaf).
func HashLeaf(leaf []byte) common.Hash {
	return keccak([]byte{leafSalt}, leaf)
}

// HashNode returns keccak256(0x01 || left || right).
func HashNode(left, right common.Hash) common.Hash {
	return keccak([]byte{nodeSalt}, left.Bytes(), right.Bytes())
}

func keccak(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return common.BytesToHash(h.Sum(nil))
}

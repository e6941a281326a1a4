package certify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/chash"
)

func TestMerkleRoot_Empty(t *testing.T) {
	require.Equal(t, chash.Empty(), MerkleRoot(nil))
}

func TestMerkleRoot_OrderIndependent(t *testing.T) {
	a := chash.Compute([]byte("a"))
	b := chash.Compute([]byte("b"))
	c := chash.Compute([]byte("c"))

	r1 := MerkleRoot([]chash.Hash{a, b, c})
	r2 := MerkleRoot([]chash.Hash{c, a, b})
	require.Equal(t, r1, r2)
}

func TestMerkleRoot_DeduplicatesAddresses(t *testing.T) {
	a := chash.Compute([]byte("a"))
	b := chash.Compute([]byte("b"))

	withDup := MerkleRoot([]chash.Hash{a, b, a})
	withoutDup := MerkleRoot([]chash.Hash{a, b})
	require.Equal(t, withoutDup, withDup)
}

func TestMerkleRoot_DifferentSetsDifferentRoots(t *testing.T) {
	a := chash.Compute([]byte("a"))
	b := chash.Compute([]byte("b"))
	c := chash.Compute([]byte("c"))

	r1 := MerkleRoot([]chash.Hash{a, b})
	r2 := MerkleRoot([]chash.Hash{a, c})
	require.NotEqual(t, r1, r2)
}

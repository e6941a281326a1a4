package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

func TestHashChainValidatesCleanSequence(t *testing.T) {
	c := NewHashChain()
	c.Push(chash.Compute([]byte("one")))
	c.Push(chash.Compute([]byte("two")))
	c.Push(chash.Compute([]byte("three")))
	require.NoError(t, c.Validate())
	require.Equal(t, 3, c.Len())
}

func TestHashChainTipChangesPerPush(t *testing.T) {
	c := NewHashChain()
	require.True(t, c.Tip().IsZero())
	c.Push(chash.Compute([]byte("one")))
	tip1 := c.Tip()
	c.Push(chash.Compute([]byte("two")))
	tip2 := c.Tip()
	require.NotEqual(t, tip1, tip2)
}

func TestHashChainDetectsTamperedLink(t *testing.T) {
	c := NewHashChain()
	c.Push(chash.Compute([]byte("one")))
	c.Push(chash.Compute([]byte("two")))

	links := c.Links()
	links[1].LinkHash = chash.Compute([]byte("tampered"))

	err := c.Validate()
	require.Error(t, err)
	require.Equal(t, ferrors.KindBrokenChain, err.(*ChainError).Kind())
}

func TestHashChainValidateFromCertifiedPrefix(t *testing.T) {
	c := NewHashChain()
	c.Push(chash.Compute([]byte("one")))
	certifiedTip := c.Tip()
	c.Push(chash.Compute([]byte("two")))
	c.Push(chash.Compute([]byte("three")))

	require.NoError(t, c.ValidateFrom(1, certifiedTip))
}

func TestHashChainIsDeterministicAcrossTwoBuilds(t *testing.T) {
	events := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	build := func() chash.Hash {
		c := NewHashChain()
		for _, e := range events {
			c.Push(chash.Compute(e))
		}
		return c.Tip()
	}

	require.Equal(t, build(), build())
}

package chash

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func TestComputeIsIdempotent(t *testing.T) {
	fuzzer := fuzz.NewWithSeed(3)
	for i := 0; i < 500; i++ {
		var data []byte
		fuzzer.NilChance(0).Fuzz(&data)

		first := Compute(data)
		second := Compute(data)
		require.Equal(t, first, second)
		require.Equal(t, first.String(), second.String())
	}
}

func TestComputeWithEveryAlgorithmIsIdempotent(t *testing.T) {
	data := []byte("cathedral-fabric")
	for _, algo := range []Algorithm{Blake3, SHA256, SHA512, Keccak256} {
		first := ComputeWith(algo, data)
		second := ComputeWith(algo, data)
		require.Equal(t, first, second)
		require.Equal(t, algo, first.Algorithm)
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Blake3, SHA256, SHA512, Keccak256} {
		h := ComputeWith(algo, []byte("round trip"))
		parsed, err := Parse(h.String())
		require.NoError(t, err)
		require.Equal(t, h, parsed)
	}
}

func TestParseAlgorithmRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Blake3, SHA256, SHA512, Keccak256} {
		parsed, err := ParseAlgorithm(algo.String())
		require.NoError(t, err)
		require.Equal(t, algo, parsed)
	}
	_, err := ParseAlgorithm("nonsense")
	require.Error(t, err)
}

func TestEmptyIsDigestOfEmptyInputUnderBlake3(t *testing.T) {
	require.Equal(t, Compute(nil), Empty())
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	_, err := FromBytes(Blake3, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("not-a-valid-address")
	require.Error(t, err)
}

func TestDifferentInputsProduceDifferentDigests(t *testing.T) {
	a := Compute([]byte("a"))
	b := Compute([]byte("b"))
	require.NotEqual(t, a, b)
}

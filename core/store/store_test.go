package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/chash"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	data := []byte("hello store")

	addr1, err := s.Put(data)
	require.NoError(t, err)
	addr2, err := s.Put(data)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)
	require.Equal(t, 1, len(s.Addresses()))
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	data := []byte("round trip payload")

	addr, err := s.Put(data)
	require.NoError(t, err)
	got, err := s.Get(addr)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(chash.Compute([]byte("never stored")))
	require.Error(t, err)
}

func TestHasReflectsPresence(t *testing.T) {
	s := openTestStore(t)
	addr := chash.Compute([]byte("present"))
	require.False(t, s.Has(addr))
	_, err := s.Put([]byte("present"))
	require.NoError(t, err)
	require.True(t, s.Has(addr))
}

func TestAddressesAreLexicographicallySorted(t *testing.T) {
	s := openTestStore(t)
	for _, payload := range [][]byte{[]byte("zeta"), []byte("alpha"), []byte("mid")} {
		_, err := s.Put(payload)
		require.NoError(t, err)
	}
	addrs := s.Addresses()
	require.Len(t, addrs, 3)
	require.True(t, sortedAscending(addrs))
}

func sortedAscending(xs []string) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] > xs[i] {
			return false
		}
	}
	return true
}

func TestVerifyAcceptsIntactBlob(t *testing.T) {
	s := openTestStore(t)
	addr, err := s.Put([]byte("trusted content"))
	require.NoError(t, err)
	require.NoError(t, s.Verify(addr))
}

func TestCompactRemovesDeadBlobsOnly(t *testing.T) {
	s := openTestStore(t)
	live, err := s.Put([]byte("keep me"))
	require.NoError(t, err)
	dead, err := s.Put([]byte("drop me"))
	require.NoError(t, err)

	result, err := s.Compact(map[string]bool{live.String(): true})
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)
	require.Equal(t, 1, result.Kept)
	require.True(t, s.Has(live))
	require.False(t, s.Has(dead))
}

func TestCopyToStreamsStoredBytes(t *testing.T) {
	s := openTestStore(t)
	addr, err := s.Put([]byte("streamed"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.CopyTo(addr, &buf))
	require.Equal(t, "streamed", buf.String())
}

package certify

import (
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
	"github.com/cathedral-fabric/fabric/core/store"
)

func setupCertifiedRun(t *testing.T) (*eventlog.Log, *store.Store, Certificate, ed25519.PublicKey) {
	t.Helper()
	run := ids.NewRunId("certifier-s6")
	node := ids.NewNodeId(run, "n1")

	log, err := eventlog.Open(filepath.Join(t.TempDir(), "log"), run)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	bs, err := store.Open(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	addr, err := bs.Put([]byte("tool output bytes"))
	require.NoError(t, err)

	_, err = log.Append(eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeStarted))
	require.NoError(t, err)
	ev := eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.BlobStored).
		WithPayload([]byte("tool output bytes"))
	require.Equal(t, addr, ev.PayloadHash)
	_, err = log.Append(ev)
	require.NoError(t, err)
	_, err = log.Append(eventlog.New(ids.NewEventId(run, 2), run, node, ltime.FromRaw(3), eventlog.NodeCompleted))
	require.NoError(t, err)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cert, err := Certify(log, priv)
	require.NoError(t, err)

	return log, bs, cert, pub
}

func TestCertify_S6_RoundTripVerifies(t *testing.T) {
	log, bs, cert, _ := setupCertifiedRun(t)
	require.NoError(t, Verify(cert, log, bs))
}

func TestCertify_S6_MissingBlobFailsVerification(t *testing.T) {
	log, bs, cert, _ := setupCertifiedRun(t)

	// Compact with an empty live set: every blob the certificate
	// references becomes unretrievable, the way a storage-layer bug
	// (flipping a bit in-place, or losing a blob entirely) would surface.
	_, err := bs.Compact(map[string]bool{})
	require.NoError(t, err)

	err = Verify(cert, log, bs)
	require.Error(t, err)
	require.Equal(t, ferrors.KindNotFound, ferrors.KindOf(err))
}

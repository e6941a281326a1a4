package bundle

import (
	"bytes"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/certify"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
	"github.com/cathedral-fabric/fabric/core/store"
)

func setupRun(t *testing.T) (*eventlog.Log, *store.Store, ids.RunId, ids.NodeId) {
	t.Helper()
	run := ids.NewRunId("bundle-s6")
	node := ids.NewNodeId(run, "n1")

	log, err := eventlog.Open(filepath.Join(t.TempDir(), "log"), run)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	bs, err := store.Open(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	addr, err := bs.Put([]byte("hello bundle"))
	require.NoError(t, err)

	_, err = log.Append(eventlog.New(ids.NewEventId(run, 0), run, node, ltime.FromRaw(1), eventlog.NodeStarted))
	require.NoError(t, err)
	ev := eventlog.New(ids.NewEventId(run, 1), run, node, ltime.FromRaw(2), eventlog.BlobStored).
		WithPayload([]byte("hello bundle"))
	require.Equal(t, addr, ev.PayloadHash)
	_, err = log.Append(ev)
	require.NoError(t, err)
	_, err = log.Append(eventlog.New(ids.NewEventId(run, 2), run, node, ltime.FromRaw(3), eventlog.NodeCompleted))
	require.NoError(t, err)

	return log, bs, run, node
}

func TestWriteReadRoundTrip(t *testing.T) {
	log, bs, run, _ := setupRun(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, log, bs, Options{}))

	b, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, run, b.RunID)
	require.Len(t, b.Events, 3)
	require.Len(t, b.Blobs, 1)
}

func TestWriteIncludesCertificateAndRestoreVerifies(t *testing.T) {
	log, bs, _, _ := setupRun(t)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	cert, err := certify.Certify(log, priv)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, log, bs, Options{Certificate: &cert}))

	b, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, b.Certificate)
	require.Equal(t, cert.Body.RunID, b.Certificate.Body.RunID)

	restoredStore, restoredLog, err := Restore(b, filepath.Join(t.TempDir(), "store"), filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = restoredStore.Close() })
	t.Cleanup(func() { _ = restoredLog.Close() })

	require.NoError(t, certify.Verify(*b.Certificate, restoredLog, restoredStore))
}

func TestWriteEntryOrderIsDeterministic(t *testing.T) {
	log, bs, _, _ := setupRun(t)

	var first, second bytes.Buffer
	require.NoError(t, Write(&first, log, bs, Options{}))
	require.NoError(t, Write(&second, log, bs, Options{}))
	require.Equal(t, first.Bytes(), second.Bytes())
}

// Package bundle implements the replay bundle (spec.md §6): a tar
// archive with deterministic entry ordering (lex by pathname, zeroed
// mtimes) carrying a canonically-encoded manifest, the event log in
// its framed file format, every reachable blob, and optionally a
// certificate — everything replay or verify-bundle needs without a
// live store/log directory.
package bundle

import (
	"archive/tar"
	"bytes"
	"io"
	"path"
	"sort"

	"github.com/cathedral-fabric/fabric/core/certify"
	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/codec"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/store"
)

const (
	manifestEntry    = "manifest.json"
	logEntry         = "log.bin"
	certificateEntry = "certificate.json"
	blobsPrefix      = "blobs/"
	manifestVersion  = 1
)

// wireManifest is the manifest's canonically-encoded shape.
type wireManifest struct {
	Version      uint8
	RunID        []byte
	BlobCount    uint64
	HasCert      bool
}

// Options selects which optional parts a Write call includes.
type Options struct {
	Certificate *certify.Certificate
}

// Write streams a complete replay bundle for log.RunID(), built from every
// event durable in log and every blob store.Addresses() reports, to
// w as a tar archive. Entries are written in lexical pathname order
// with zeroed mtimes so two bundles of the same run are byte-identical
// regardless of when or on what machine they were produced.
func Write(w io.Writer, log *eventlog.Log, bs *store.Store, opts Options) error {
	events := make([]eventlog.Event, log.Len())
	for i := range events {
		ev, err := log.At(i)
		if err != nil {
			return err
		}
		events[i] = ev
	}

	var logBuf bytes.Buffer
	if err := eventlog.WriteFile(&logBuf, log.RunID(), events); err != nil {
		return err
	}

	addrs := bs.Addresses()

	manifest := wireManifest{
		Version:   manifestVersion,
		RunID:     log.RunID().Bytes(),
		BlobCount: uint64(len(addrs)),
		HasCert:   opts.Certificate != nil,
	}
	manifestBytes, err := codec.Encode(manifest)
	if err != nil {
		return err
	}

	type entry struct {
		name string
		data []byte
	}
	entries := []entry{
		{manifestEntry, manifestBytes},
		{logEntry, logBuf.Bytes()},
	}
	for _, addrStr := range addrs {
		addr, err := chash.Parse(addrStr)
		if err != nil {
			return err
		}
		var blobBuf bytes.Buffer
		if err := bs.CopyTo(addr, &blobBuf); err != nil {
			return err
		}
		entries = append(entries, entry{path.Join(blobsPrefix, blobRelPath(addr)), blobBuf.Bytes()})
	}
	if opts.Certificate != nil {
		certBytes, err := opts.Certificate.Encode()
		if err != nil {
			return err
		}
		entries = append(entries, entry{certificateEntry, certBytes})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Size:     int64(len(e.data)),
			Mode:     0o600,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "bundle.Write", err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "bundle.Write", err)
		}
	}
	return tw.Close()
}

func blobRelPath(addr chash.Hash) string {
	hex := addr.Hex()
	return path.Join(addr.Algorithm.String(), hex[:2], hex[2:])
}

// Bundle is a parsed replay bundle's in-memory contents.
type Bundle struct {
	RunID       ids.RunId
	Events      []eventlog.Event
	Blobs       map[string][]byte // address string -> bytes
	Certificate *certify.Certificate
}

// Read parses a tar archive produced by Write.
func Read(r io.Reader) (*Bundle, error) {
	tr := tar.NewReader(r)
	b := &Bundle{Blobs: make(map[string][]byte)}

	var manifest wireManifest
	haveManifest := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "bundle.Read", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.KindInvalidEncoding, "bundle.Read", err)
		}

		switch {
		case hdr.Name == manifestEntry:
			if err := codec.Decode(data, &manifest); err != nil {
				return nil, err
			}
			haveManifest = true
		case hdr.Name == logEntry:
			runID, events, err := eventlog.ReadFile(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			b.RunID = runID
			b.Events = events
		case hdr.Name == certificateEntry:
			cert, err := certify.Decode(data)
			if err != nil {
				return nil, err
			}
			b.Certificate = &cert
		case len(hdr.Name) > len(blobsPrefix) && hdr.Name[:len(blobsPrefix)] == blobsPrefix:
			addr, err := addressFromRelPath(hdr.Name[len(blobsPrefix):])
			if err != nil {
				return nil, err
			}
			b.Blobs[addr.String()] = data
		}
	}

	if !haveManifest {
		return nil, ferrors.New(ferrors.KindValidation, "bundle.Read: missing manifest")
	}
	if uint64(len(b.Blobs)) != manifest.BlobCount {
		return nil, ferrors.New(ferrors.KindValidation, "bundle.Read: blob count mismatch")
	}
	return b, nil
}

// addressFromRelPath reverses blobRelPath: "<algo>/<xx>/<rest>" back
// into a parsed chash.Hash.
func addressFromRelPath(rel string) (chash.Hash, error) {
	algoName := path.Dir(path.Dir(rel))
	hi := path.Base(path.Dir(rel))
	lo := path.Base(rel)
	algo, err := chash.ParseAlgorithm(algoName)
	if err != nil {
		return chash.Hash{}, err
	}
	return chash.FromHex(algo, hi+lo)
}

// Restore materializes b's blobs and log into freshly opened store and
// log directories, returning them ready for replay.Reconstruct/
// certify.Verify.
func Restore(b *Bundle, storeDir, logDir string) (*store.Store, *eventlog.Log, error) {
	bs, err := store.Open(storeDir)
	if err != nil {
		return nil, nil, err
	}
	for _, data := range b.Blobs {
		if _, err := bs.Put(data); err != nil {
			return nil, nil, err
		}
	}

	log, err := eventlog.Open(logDir, b.RunID)
	if err != nil {
		return nil, nil, err
	}
	for _, ev := range b.Events {
		if _, err := log.Append(ev); err != nil {
			return nil, nil, err
		}
	}
	return bs, log, nil
}

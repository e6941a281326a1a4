// Package store implements the Content Store (C2): a content-addressed
// blob repository with verification and compaction (it has no
// snapshot operation),
// grounded on cathedral_storage::address / cathedral_storage::blob and
// the teacher's bolt-plus-ristretto caching pattern
// (beacon-chain/db/kv/kv.go).
package store

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	bolt "go.etcd.io/bbolt"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

const (
	databaseFileName = "store.db"
	tmpDir           = "tmp"
)

var indexBucket = []byte("addresses")

// ReadCacheSize bounds the in-memory blob read cache, mirroring the
// teacher's BlockCacheSize (beacon-chain/db/kv/kv.go).
var ReadCacheSize = int64(1 << 24)

// Store is the content-addressed blob repository. Blobs live on an
// afero filesystem under `<root>/<algo>/<first-two-hex>/<rest-hex>`
// (spec.md §6); a bolt index tracks known addresses for fast
// existence/iteration without a directory walk; a ristretto cache
// serves hot reads.
type Store struct {
	mu    sync.Mutex
	fs    afero.Fs
	root  string
	db    *bolt.DB
	cache *ristretto.Cache
}

// Open opens or creates a Store rooted at dirPath on the OS
// filesystem.
func Open(dirPath string) (*Store, error) {
	return OpenFs(afero.NewOsFs(), dirPath)
}

// OpenFs opens or creates a Store on an arbitrary afero.Fs, letting
// tests substitute an in-memory filesystem.
func OpenFs(fs afero.Fs, dirPath string) (*Store, error) {
	if err := fs.MkdirAll(dirPath, 0o700); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Open", err)
	}
	if err := fs.MkdirAll(path.Join(dirPath, tmpDir), 0o700); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Open", err)
	}

	datafile := path.Join(dirPath, databaseFileName)
	db, err := openIndex(fs, datafile)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Open", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000_000,
		MaxCost:     ReadCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Open", err)
	}

	s := &Store{fs: fs, root: dirPath, db: db, cache: cache}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Open", err)
	}
	return s, nil
}

// openIndex opens the bolt index file. bbolt requires a real OS file,
// so datafile is always opened on the OS filesystem, even when fs is
// not; in that case the index is opened with NoSync (test fixtures use
// this path).
func openIndex(fs afero.Fs, datafile string) (*bolt.DB, error) {
	if _, ok := fs.(*afero.OsFs); ok {
		return bolt.Open(datafile, 0o600, &bolt.Options{Timeout: time.Second})
	}
	return bolt.Open(datafile, 0o600, &bolt.Options{Timeout: time.Second, NoSync: true})
}

// Close releases the store's durable handles.
func (s *Store) Close() error {
	return s.db.Close()
}

func blobPath(addr chash.Hash) string {
	hex := addr.Hex()
	return path.Join(addr.Algorithm.String(), hex[:2], hex[2:])
}

// Put writes bytes if absent and returns its content address. Put is
// idempotent: writing the same bytes twice returns the same address
// and stores one copy (spec.md §4.2).
func (s *Store) Put(data []byte) (chash.Hash, error) {
	addr := chash.Compute(data)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLocked(addr) {
		return addr, nil
	}

	rel := blobPath(addr)
	if err := s.fs.MkdirAll(path.Join(s.root, path.Dir(rel)), 0o700); err != nil {
		return chash.Hash{}, ferrors.Wrap(ferrors.KindInternal, "store.Put", err)
	}

	tmpName := path.Join(s.root, tmpDir, fmt.Sprintf("%s.tmp", addr.Hex()))
	if err := afero.WriteFile(s.fs, tmpName, data, 0o600); err != nil {
		return chash.Hash{}, ferrors.Wrap(ferrors.KindInternal, "store.Put", err)
	}
	finalName := path.Join(s.root, rel)
	if err := s.fs.Rename(tmpName, finalName); err != nil {
		return chash.Hash{}, ferrors.Wrap(ferrors.KindInternal, "store.Put", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(addr.String()), []byte{1})
	}); err != nil {
		return chash.Hash{}, ferrors.Wrap(ferrors.KindInternal, "store.Put", err)
	}

	s.cache.Set(addr.String(), data, int64(len(data)))
	return addr, nil
}

// Get returns the bytes stored at addr, failing NotFound if absent.
func (s *Store) Get(addr chash.Hash) ([]byte, error) {
	if cached, ok := s.cache.Get(addr.String()); ok {
		return cached.([]byte), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLocked(addr) {
		return nil, ferrors.New(ferrors.KindNotFound, "store.Get")
	}
	data, err := afero.ReadFile(s.fs, path.Join(s.root, blobPath(addr)))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "store.Get", err)
	}
	s.cache.Set(addr.String(), data, int64(len(data)))
	return data, nil
}

// Has reports whether addr is present.
func (s *Store) Has(addr chash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasLocked(addr)
}

func (s *Store) hasLocked(addr chash.Hash) bool {
	var present bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		present = tx.Bucket(indexBucket).Get([]byte(addr.String())) != nil
		return nil
	})
	return present
}

// Verify recomputes addr's digest from the stored bytes, failing
// HashMismatch on drift.
func (s *Store) Verify(addr chash.Hash) error {
	data, err := s.Get(addr)
	if err != nil {
		return err
	}
	if chash.ComputeWith(addr.Algorithm, data) != addr {
		return ferrors.New(ferrors.KindHashMismatch, "store.Verify")
	}
	return nil
}

// Addresses returns every known address in byte-lexicographic order
// (spec.md §4.2: "never insertion order").
func (s *Store) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var addrs []string
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(indexBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			addrs = append(addrs, string(k))
		}
		return nil
	})
	sort.Strings(addrs)
	return addrs
}

// CompactResult reports what a Compact call removed.
type CompactResult struct {
	Removed int
	Kept    int
}

// Compact garbage-collects blobs whose address is not in liveSet.
func (s *Store) Compact(liveSet map[string]bool) (CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []string
	var kept int
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(indexBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if liveSet[string(k)] {
				kept++
			} else {
				toRemove = append(toRemove, string(k))
			}
		}
		return nil
	})

	for _, addrStr := range toRemove {
		addr, err := chash.Parse(addrStr)
		if err != nil {
			return CompactResult{}, err
		}
		if err := s.fs.Remove(path.Join(s.root, blobPath(addr))); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			return CompactResult{}, ferrors.Wrap(ferrors.KindInternal, "store.Compact", err)
		}
		if err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(indexBucket).Delete([]byte(addrStr))
		}); err != nil {
			return CompactResult{}, ferrors.Wrap(ferrors.KindInternal, "store.Compact", err)
		}
		s.cache.Del(addrStr)
	}
	return CompactResult{Removed: len(toRemove), Kept: kept}, nil
}

// CopyTo streams addr's bytes to w, for bundle export (spec.md §6).
func (s *Store) CopyTo(addr chash.Hash, w io.Writer) error {
	data, err := s.Get(addr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}

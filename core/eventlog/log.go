package eventlog

import (
	"encoding/binary"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
)

const databaseFileName = "eventlog.db"

var (
	eventsBucket = []byte("events")
	chainBucket  = []byte("chain")
	metaBucket   = []byte("meta")

	tipKey = []byte("tip")
)

// Log is the append-only, hash-chained event log (C3), backed by a
// bolt database for durability, grounded on the teacher's
// beacon-chain/db/kv append pattern (bucket-per-concern, one db.Update
// per mutation).
type Log struct {
	mu    sync.Mutex
	db    *bolt.DB
	chain *HashChain
	runID ids.RunId
	next  uint64 // next sequence number to append
}

// Open opens or creates a Log for runID at dirPath, replaying any
// existing chain from disk so the in-memory HashChain matches the
// durable state exactly.
func Open(dirPath string, runID ids.RunId) (*Log, error) {
	if err := os.MkdirAll(dirPath, 0o700); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "eventlog.Open", err)
	}
	datafile := path.Join(dirPath, databaseFileName)
	db, err := bolt.Open(datafile, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "eventlog.Open", err)
	}

	l := &Log{db: db, chain: NewHashChain(), runID: runID}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{eventsBucket, chainBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "eventlog.Open", err)
	}

	if err := l.replay(); err != nil {
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

func (l *Log) replay() error {
	return l.db.View(func(tx *bolt.Tx) error {
		chainBkt := tx.Bucket(chainBucket)
		eventsBkt := tx.Bucket(eventsBucket)
		c := eventsBkt.Cursor()
		var count uint64
		for k, v := c.First(); k != nil; k, v = c.Next() {
			ev, err := Decode(v)
			if err != nil {
				return err
			}
			eventHash := chash.Compute(v)
			linkBytes := chainBkt.Get(k)
			if linkBytes == nil {
				return errors.Errorf("eventlog: missing chain link for sequence %d", binary.BigEndian.Uint64(k))
			}
			linkHash, err := chash.FromBytes(chash.Blake3, linkBytes)
			if err != nil {
				return err
			}
			link := l.chain.Push(eventHash)
			if link.LinkHash != linkHash {
				return &ChainError{Position: int(count)}
			}
			_ = ev
			count++
		}
		l.next = count
		return nil
	})
}

// Append atomically encodes, hashes, chains, and durably writes ev.
// Nothing is visible to readers until every step has succeeded
// (spec.md §4.3).
func (l *Log) Append(ev Event) (Link, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	encoded, err := ev.Encode()
	if err != nil {
		return Link{}, err
	}
	eventHash := chash.Compute(encoded)

	seq := l.next
	key := seqKey(seq)

	// Compute the link speculatively; only commit chain state once the
	// bolt transaction has durably succeeded.
	prevLinkHash := l.chain.Tip()

	err = l.db.Update(func(tx *bolt.Tx) error {
		eventsBkt := tx.Bucket(eventsBucket)
		if existing := eventsBkt.Get(key); existing != nil {
			return errors.Errorf("eventlog: sequence %d already written", seq)
		}
		if err := eventsBkt.Put(key, encoded); err != nil {
			return err
		}
		var linkHash chash.Hash
		if seq == 0 {
			linkHash = chash.Compute(eventHash.Digest[:])
		} else {
			buf := make([]byte, 0, 64)
			buf = append(buf, prevLinkHash.Digest[:]...)
			buf = append(buf, eventHash.Digest[:]...)
			linkHash = chash.Compute(buf)
		}
		chainBkt := tx.Bucket(chainBucket)
		if err := chainBkt.Put(key, linkHash.Digest[:]); err != nil {
			return err
		}
		metaBkt := tx.Bucket(metaBucket)
		return metaBkt.Put(tipKey, linkHash.Digest[:])
	})
	if err != nil {
		return Link{}, ferrors.Wrap(ferrors.KindInternal, "eventlog.Append", err)
	}

	link := l.chain.Push(eventHash)
	l.next++
	return link, nil
}

// Len reports the number of events appended.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain.Len()
}

// Tip returns the chain's current tip hash.
func (l *Log) Tip() chash.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain.Tip()
}

// RunID reports the run this log belongs to.
func (l *Log) RunID() ids.RunId {
	return l.runID
}

// Validate re-walks the entire durable chain, failing at the earliest
// corrupted position (spec.md §4.3).
func (l *Log) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain.Validate()
}

// At returns the decoded event at sequence position i.
func (l *Log) At(i int) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ev Event
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(eventsBucket).Get(seqKey(uint64(i)))
		if v == nil {
			return ferrors.New(ferrors.KindNotFound, "eventlog.At")
		}
		decoded, err := Decode(v)
		if err != nil {
			return err
		}
		ev = decoded
		return nil
	})
	return ev, err
}

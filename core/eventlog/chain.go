package eventlog

import (
	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/ferrors"
)

// Link is one (event_hash, link_hash) pair in the hash chain.
type Link struct {
	EventHash chash.Hash
	LinkHash  chash.Hash
}

// HashChain is the ordered sequence of links binding events into a
// tamper-evident sequence: link_hash_i = H(link_hash_{i-1} || event_hash_i),
// link_hash_0 = H(event_hash_0) (spec.md §3).
type HashChain struct {
	links []Link
}

// NewHashChain returns an empty chain.
func NewHashChain() *HashChain {
	return &HashChain{}
}

// Push extends the chain with a new event hash, returning the new link.
func (c *HashChain) Push(eventHash chash.Hash) Link {
	var linkHash chash.Hash
	if len(c.links) == 0 {
		linkHash = chash.Compute(eventHash.Digest[:])
	} else {
		prev := c.links[len(c.links)-1].LinkHash
		buf := make([]byte, 0, 64)
		buf = append(buf, prev.Digest[:]...)
		buf = append(buf, eventHash.Digest[:]...)
		linkHash = chash.Compute(buf)
	}
	link := Link{EventHash: eventHash, LinkHash: linkHash}
	c.links = append(c.links, link)
	return link
}

// Tip returns the chain's current tip link hash, the log's identity.
// The zero Hash is returned for an empty chain.
func (c *HashChain) Tip() chash.Hash {
	if len(c.links) == 0 {
		return chash.Hash{}
	}
	return c.links[len(c.links)-1].LinkHash
}

// Len reports the number of links in the chain.
func (c *HashChain) Len() int {
	return len(c.links)
}

// Links returns the chain's links; callers must not mutate the slice.
func (c *HashChain) Links() []Link {
	return c.links
}

// Validate recomputes every link from event hashes alone and compares
// against the stored link hashes, failing with BrokenChain at the
// first mismatch found (spec.md §4.3). O(n), restartable from any
// previously certified prefix via ValidateFrom.
func (c *HashChain) Validate() error {
	return c.ValidateFrom(0, chash.Hash{})
}

// ValidateFrom re-validates the chain starting at index `from`, given
// the already-certified link hash immediately preceding it (the zero
// Hash if from == 0).
func (c *HashChain) ValidateFrom(from int, priorLinkHash chash.Hash) error {
	prev := priorLinkHash
	for i := from; i < len(c.links); i++ {
		var want chash.Hash
		if i == 0 {
			want = chash.Compute(c.links[i].EventHash.Digest[:])
		} else {
			buf := make([]byte, 0, 64)
			buf = append(buf, prev.Digest[:]...)
			buf = append(buf, c.links[i].EventHash.Digest[:]...)
			want = chash.Compute(buf)
		}
		if want != c.links[i].LinkHash {
			return &ChainError{Position: i}
		}
		prev = c.links[i].LinkHash
	}
	return nil
}

// ChainError reports the earliest corrupted position found during
// validation.
type ChainError struct {
	Position int
}

func (e *ChainError) Error() string {
	return ferrors.New(ferrors.KindBrokenChain, "eventlog.Validate").Error()
}

// Kind reports the ferrors.Kind this error maps to.
func (e *ChainError) Kind() ferrors.Kind {
	return ferrors.KindBrokenChain
}

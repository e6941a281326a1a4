// Package certify implements the Certifier (C8): binding a completed
// run's final hashes into a signed, portable certificate and
// verifying one against a re-walked log and content store. Grounded on
// spec.md §4.8/§8-S6 — cathedral_certify's crate body was pruned from
// the retrieval pack, leaving only its module re-export list (lib.rs)
// as a shape hint — and on the teacher's reliance on
// golang.org/x/crypto for crypto primitives.
package certify

import (
	"sort"

	"github.com/cathedral-fabric/fabric/core/chash"
)

// MerkleRoot computes the root over the sorted set of blob addresses
// reachable from a run's terminal event (spec.md §4.8: "content_root is
// the Merkle root over the sorted set of blob addresses"). The input
// order never matters: addrs is sorted byte-lexicographically before
// hashing so two runs producing the same blob set in different orders
// certify to the same root.
func MerkleRoot(addrs []chash.Hash) chash.Hash {
	dedup := make(map[string]chash.Hash, len(addrs))
	for _, a := range addrs {
		dedup[a.String()] = a
	}
	if len(dedup) == 0 {
		return chash.Empty()
	}
	sorted := make([]chash.Hash, 0, len(dedup))
	for _, a := range dedup {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	layer := make([][32]byte, len(sorted))
	for i, a := range sorted {
		layer[i] = a.Digest
	}

	for len(layer) > 1 {
		var next [][32]byte
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, hashPair(layer[i], layer[i+1]))
			} else {
				// odd node is paired with itself
				next = append(next, hashPair(layer[i], layer[i]))
			}
		}
		layer = next
	}

	return chash.Hash{Algorithm: chash.Blake3, Digest: layer[0]}
}

func hashPair(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return chash.Compute(buf).Digest
}

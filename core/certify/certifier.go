package certify

import (
	"golang.org/x/crypto/ed25519"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/replay"
	"github.com/cathedral-fabric/fabric/core/store"
)

// CertificateVersion is the wire format version stamped into every
// issued certificate.
const CertificateVersion uint8 = 1

// Certify re-walks log to completion, collects every blob address
// reachable from the terminal event across all nodes, computes their
// Merkle root, and signs a Body binding {run_id, log_tip_hash,
// root_state_hash, content_root} under priv (spec.md §4.8).
func Certify(log *eventlog.Log, priv ed25519.PrivateKey) (Certificate, error) {
	if err := log.Validate(); err != nil {
		return Certificate{}, err
	}
	state, err := replay.Reconstruct(log, nil)
	if err != nil {
		return Certificate{}, err
	}

	var addrs []chash.Hash
	for _, produced := range state.Produced {
		addrs = append(addrs, produced...)
	}

	body := Body{
		Version:           CertificateVersion,
		RunID:             log.RunID(),
		LogTipHash:        log.Tip(),
		RootStateHash:     state.LastPostHash,
		ContentRoot:       MerkleRoot(addrs),
		IssuedLogicalTime: state.LogicalTime,
	}
	return Issue(body, priv)
}

// Verify checks a Certificate against the log and content store it
// claims to describe: the signature must verify, re-walking log must
// reproduce the certificate's stated tip and root-state hash, and
// every blob the terminal state reached must be retrievable from bs
// and pass its own content-address check (spec.md §4.8 (a)-(c)).
func Verify(c Certificate, log *eventlog.Log, bs *store.Store) error {
	if err := VerifySignature(c); err != nil {
		return err
	}
	if err := log.Validate(); err != nil {
		return err
	}

	state, err := replay.Reconstruct(log, nil)
	if err != nil {
		return err
	}

	if log.Tip() != c.Body.LogTipHash {
		return ferrors.New(ferrors.KindHashMismatch, "certify.Verify: log_tip_hash")
	}
	if state.LastPostHash != c.Body.RootStateHash {
		return ferrors.New(ferrors.KindHashMismatch, "certify.Verify: root_state_hash")
	}

	var addrs []chash.Hash
	for _, produced := range state.Produced {
		addrs = append(addrs, produced...)
	}
	if MerkleRoot(addrs) != c.Body.ContentRoot {
		return ferrors.New(ferrors.KindHashMismatch, "certify.Verify: content_root")
	}

	for _, addr := range addrs {
		if err := bs.Verify(addr); err != nil {
			return err
		}
	}
	return nil
}

package certify

import (
	"golang.org/x/crypto/ed25519"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/codec"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

// Scheme names a signature algorithm. Ed25519 is required; other
// schemes are pluggable by name (spec.md §4.8).
type Scheme string

// SchemeEd25519 is the required baseline scheme.
const SchemeEd25519 Scheme = "ed25519"

// Body is the canonically-encoded, unsigned record a signature
// covers: `{version, run_id, log_tip_hash, root_state_hash,
// content_root, signature_scheme, public_key, issued_logical_time}`
// (spec.md §6's certificate file shape, minus the signature itself).
type Body struct {
	Version          uint8
	RunID            ids.RunId
	LogTipHash       chash.Hash
	RootStateHash    chash.Hash
	ContentRoot      chash.Hash
	SignatureScheme  Scheme
	PublicKey        []byte
	IssuedLogicalTime ltime.LogicalTime
}

// Certificate is a Body plus the signature binding it.
type Certificate struct {
	Body      Body
	Signature []byte
}

// wireBody/wireCertificate are the RLP-encodable shapes (codec.Encode
// requires a concrete struct tree, not arbitrary interfaces).
type wireBody struct {
	Version           uint8
	RunID             []byte
	LogTipHash        string
	RootStateHash     string
	ContentRoot       string
	SignatureScheme   string
	PublicKey         []byte
	IssuedLogicalTime uint64
}

type wireCertificate struct {
	Body      wireBody
	Signature []byte
}

func toWireBody(b Body) wireBody {
	return wireBody{
		Version:           b.Version,
		RunID:             b.RunID.Bytes(),
		LogTipHash:        b.LogTipHash.String(),
		RootStateHash:     b.RootStateHash.String(),
		ContentRoot:       b.ContentRoot.String(),
		SignatureScheme:   string(b.SignatureScheme),
		PublicKey:         b.PublicKey,
		IssuedLogicalTime: b.IssuedLogicalTime.AsUint64(),
	}
}

func fromWireBody(w wireBody) (Body, error) {
	var runID ids.RunId
	copy(runID[:], w.RunID)

	tip, err := chash.Parse(w.LogTipHash)
	if err != nil {
		return Body{}, err
	}
	root, err := chash.Parse(w.RootStateHash)
	if err != nil {
		return Body{}, err
	}
	content, err := chash.Parse(w.ContentRoot)
	if err != nil {
		return Body{}, err
	}
	return Body{
		Version:           w.Version,
		RunID:             runID,
		LogTipHash:        tip,
		RootStateHash:     root,
		ContentRoot:       content,
		SignatureScheme:   Scheme(w.SignatureScheme),
		PublicKey:         w.PublicKey,
		IssuedLogicalTime: ltime.FromRaw(w.IssuedLogicalTime),
	}, nil
}

// encodeBody renders Body's canonical bytes, the exact bytes a
// signature is computed over.
func encodeBody(b Body) ([]byte, error) {
	return codec.EncodeRaw(toWireBody(b))
}

// Encode renders the full Certificate's canonical bytes.
func (c Certificate) Encode() ([]byte, error) {
	return codec.Encode(wireCertificate{Body: toWireBody(c.Body), Signature: c.Signature})
}

// Decode parses a Certificate from its canonical bytes.
func Decode(data []byte) (Certificate, error) {
	var w wireCertificate
	if err := codec.Decode(data, &w); err != nil {
		return Certificate{}, err
	}
	body, err := fromWireBody(w.Body)
	if err != nil {
		return Certificate{}, err
	}
	return Certificate{Body: body, Signature: w.Signature}, nil
}

// Issue signs body with priv under SchemeEd25519.
func Issue(body Body, priv ed25519.PrivateKey) (Certificate, error) {
	body.SignatureScheme = SchemeEd25519
	body.PublicKey = []byte(priv.Public().(ed25519.PublicKey))
	msg, err := encodeBody(body)
	if err != nil {
		return Certificate{}, err
	}
	sig := ed25519.Sign(priv, msg)
	return Certificate{Body: body, Signature: sig}, nil
}

// VerifySignature checks only the cryptographic signature over the
// certificate body, dispatching on the body's named scheme through the
// scheme registry and failing with KindValidation ("unknown_scheme")
// for anything unregistered
// rather than silently accepting it (spec.md §4.8).
func VerifySignature(c Certificate) error {
	verify, ok := lookupScheme(c.Body.SignatureScheme)
	if !ok {
		return ferrors.New(ferrors.KindValidation, "certify.VerifySignature: unknown_scheme")
	}
	msg, err := encodeBody(c.Body)
	if err != nil {
		return err
	}
	if !verify(c.Body.PublicKey, msg, c.Signature) {
		return ferrors.New(ferrors.KindValidation, "certify.VerifySignature")
	}
	return nil
}

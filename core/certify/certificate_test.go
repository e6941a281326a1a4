package certify

import (
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/stretchr/testify/require"

	"github.com/cathedral-fabric/fabric/core/chash"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/ltime"
)

func testBody(t *testing.T) Body {
	t.Helper()
	return Body{
		Version:           CertificateVersion,
		RunID:             ids.NewRunId("certify-test"),
		LogTipHash:        chash.Compute([]byte("tip")),
		RootStateHash:     chash.Compute([]byte("root")),
		ContentRoot:       chash.Compute([]byte("content")),
		IssuedLogicalTime: ltime.FromRaw(7),
	}
}

func TestCertificate_IssueAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cert, err := Issue(testBody(t), priv)
	require.NoError(t, err)
	require.Equal(t, SchemeEd25519, cert.Body.SignatureScheme)
	require.Equal(t, []byte(pub), cert.Body.PublicKey)

	require.NoError(t, VerifySignature(cert))
}

func TestCertificate_TamperedBodyFailsVerification(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cert, err := Issue(testBody(t), priv)
	require.NoError(t, err)

	cert.Body.RootStateHash = chash.Compute([]byte("tampered"))
	require.Error(t, VerifySignature(cert))
}

func TestCertificate_UnknownSchemeFails(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cert, err := Issue(testBody(t), priv)
	require.NoError(t, err)
	cert.Body.SignatureScheme = Scheme("made-up-scheme")

	err = VerifySignature(cert)
	require.Error(t, err)
	require.Equal(t, ferrors.KindValidation, ferrors.KindOf(err))
}

func TestCertificate_EncodeDecodeRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cert, err := Issue(testBody(t), priv)
	require.NoError(t, err)

	encoded, err := cert.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, cert.Body, decoded.Body)
	require.Equal(t, cert.Signature, decoded.Signature)
	require.NoError(t, VerifySignature(decoded))
}

func TestRegisterScheme_PluggableVerifier(t *testing.T) {
	called := false
	RegisterScheme("always-true", func(publicKey, msg, sig []byte) bool {
		called = true
		return true
	})

	body := testBody(t)
	body.SignatureScheme = "always-true"
	cert := Certificate{Body: body, Signature: []byte("anything")}

	require.NoError(t, VerifySignature(cert))
	require.True(t, called)
}

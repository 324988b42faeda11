// Package attest signs and verifies the off-chain attestation issued at
// intake: ECDSA over NIST P-256 with SHA-256, DER-encoded signatures in hex,
// over the RFC 8785 canonical JSON of the payload.
package attest

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"

	"github.com/gowebpki/jcs"

	"craftid/backend/internal/secrets"
)

// Payload is the tuple the platform attests to at intake.
type Payload struct {
	PublicID   string `json:"public_id"`
	PublicHash string `json:"public_hash"`
	Timestamp  string `json:"timestamp"`
	Salt       string `json:"salt"`
}

// Attestation is the stored/returned envelope.
type Attestation struct {
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"`
}

type Signer struct {
	key *ecdsa.PrivateKey
}

type Verifier struct {
	key *ecdsa.PublicKey
}

// NewSigner loads an EC private key (PEM, SEC 1 or PKCS#8) from the secret
// source. It fails fast on unreadable or non-P-256 material and never includes
// the key reference in error strings.
func NewSigner(src secrets.Source, ref string) (*Signer, error) {
	pemBytes, err := src.Read(ref)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("signer key is not valid PEM")
	}
	var key *ecdsa.PrivateKey
	if k, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		key = k
	} else if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ec, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("signer key is not an EC key")
		}
		key = ec
	} else {
		return nil, errors.New("signer key could not be parsed")
	}
	if key.Curve.Params().Name != "P-256" {
		return nil, errors.New("signer key must be on curve P-256")
	}
	return &Signer{key: key}, nil
}

// NewVerifier loads the platform public key (PEM, PKIX) from the secret source.
func NewVerifier(src secrets.Source, ref string) (*Verifier, error) {
	pemBytes, err := src.Read(ref)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("platform public key is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.New("platform public key could not be parsed")
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("platform public key is not an EC key")
	}
	return &Verifier{key: pub}, nil
}

// VerifierFor returns the verifier for a signer's own key pair.
func (s *Signer) VerifierFor() *Verifier {
	return &Verifier{key: &s.key.PublicKey}
}

func canonicalPayload(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// Sign returns the hex DER signature over the canonical payload bytes.
func (s *Signer) Sign(p Payload) (string, error) {
	msg, err := canonicalPayload(p)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether sigHex is a valid signature over the canonical
// payload. The reason distinguishes malformed hex from a mismatch.
func (v *Verifier) Verify(p Payload, sigHex string) (bool, string) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, "invalid signature hex"
	}
	msg, err := canonicalPayload(p)
	if err != nil {
		return false, "invalid payload"
	}
	digest := sha256.Sum256(msg)
	if !ecdsa.VerifyASN1(v.key, digest[:], sig) {
		return false, "invalid signature"
	}
	return true, ""
}

package fhe

import (
	"crypto/ed25519"
	"crypto/sha256"
)

// Attestation is the validity proof returned by the decryption authority.
// It binds a revealed cleartext byte to the id of the handle it was
// decrypted from, preventing replay of a cleartext against another handle.
type Attestation struct {
	HandleID  string `json:"handle_id"`
	Value     byte   `json:"value"`
	Signature []byte `json:"signature"`
}

func attestationDigest(handleID string, v byte) []byte {
	sum := sha256.Sum256(append([]byte(handleID), v))
	return sum[:]
}

// Verify checks the attestation against the expected handle. It fails when
// the signature is invalid or when the attestation was issued for a
// different handle than the one the caller committed to.
func (a Attestation) Verify(pub ed25519.PublicKey, expected Handle) error {
	if a.HandleID != expected.ID || expected.ID == "" {
		return ErrInvalidProof
	}
	if !ed25519.Verify(pub, attestationDigest(a.HandleID, a.Value), a.Signature) {
		return ErrInvalidProof
	}
	return nil
}

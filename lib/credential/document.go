// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

// TrustBundle identifies the key a document was signed with. A
// verifier holding the bundle can check the document offline.
type TrustBundle struct {
	TrustDomain string            `json:"trust_domain"`
	KeyID       string            `json:"key_id"`
	PublicKey   ed25519.PublicKey `json:"public_key"`
}

// Document is a verifiable identity document.
type Document struct {
	// Subject is the identity's structured identifier.
	Subject    string `json:"subject"`
	IdentityID string `json:"identity_id"`
	Issuer     string `json:"issuer"`

	// Serial is 128 random bits, hex encoded.
	Serial string `json:"serial"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	TTL     time.Duration `json:"ttl_ns"`
	Clamped bool          `json:"clamped"`

	Signature []byte      `json:"signature"`
	Bundle    TrustBundle `json:"bundle"`
}

// signingPayload is the exact structure covered by a document
// signature. Integer keys keep the encoding compact and stable under
// field renames.
type signingPayload struct {
	Subject   string    `cbor:"1,keyasint"`
	Issuer    string    `cbor:"2,keyasint"`
	IssuedAt  time.Time `cbor:"3,keyasint"`
	ExpiresAt time.Time `cbor:"4,keyasint"`
	Serial    string    `cbor:"5,keyasint"`
}

// SigningPayload returns the deterministic CBOR bytes the document's
// signature covers.
func (d Document) SigningPayload() ([]byte, error) {
	payload, err := codec.Marshal(signingPayload{
		Subject:   d.Subject,
		Issuer:    d.Issuer,
		IssuedAt:  d.IssuedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
		Serial:    d.Serial,
	})
	if err != nil {
		return nil, fmt.Errorf("credential: encoding document payload: %w", err)
	}
	return payload, nil
}

// VerifyDocumentSignature checks document against bundle without
// regard to time. Use Issuer.VerifyDocument for the full check.
func VerifyDocumentSignature(document Document, bundle TrustBundle) error {
	if document.Bundle.KeyID != bundle.KeyID || len(bundle.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("document %s: signed by key %q, trusted key is %q: %w",
			document.Serial, document.Bundle.KeyID, bundle.KeyID, schema.ErrSignatureInvalid)
	}
	if KeyID(bundle.PublicKey) != bundle.KeyID {
		return fmt.Errorf("trust bundle key ID does not match its public key: %w", schema.ErrSignatureInvalid)
	}
	payload, err := document.SigningPayload()
	if err != nil {
		return err
	}
	if !ed25519.Verify(bundle.PublicKey, payload, document.Signature) {
		return fmt.Errorf("document %s: %w", document.Serial, schema.ErrSignatureInvalid)
	}
	return nil
}

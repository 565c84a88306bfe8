// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Claims is the JWT payload of a token. Timestamps are Unix seconds.
type Claims struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti"`

	Name         string              `json:"name"`
	Namespace    string              `json:"namespace"`
	Kind         schema.IdentityKind `json:"kind"`
	TrustLevel   schema.TrustLevel   `json:"trust_level"`
	StructuredID string              `json:"structured_id,omitempty"`
}

var _ jwt.Claims = Claims{}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c Claims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

// Token is an issued bearer token.
type Token struct {
	// Raw is the compact JWS serialization.
	Raw    string `json:"token"`
	Claims Claims `json:"claims"`

	TTL     time.Duration `json:"ttl_ns"`
	Clamped bool          `json:"clamped"`
}

// ExpiresAt returns the expiry as a time.
func (t Token) ExpiresAt() time.Time {
	return time.Unix(t.Claims.ExpiresAt, 0).UTC()
}

// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// DefaultTokenTTL is the token lifetime used when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenIssuer mints signed bearer tokens with an expiry claim.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer signing with the given shared
// secret. If ttl is zero, DefaultTokenTTL is used.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue mints a signed token for the given subject.
func (i *TokenIssuer) Issue(subject string) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(i.ttl))
	if i.issuer != "" {
		builder = builder.Issuer(i.issuer)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// TokenVerifier validates signed bearer tokens: signature, expiry, and
// issuer when one is configured.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a TokenVerifier for tokens signed with the
// given shared secret.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

// Verify parses and validates tokenString and returns the verified
// user identity. Expired, malformed, or mis-signed tokens return an
// error.
func (v *TokenVerifier) Verify(tokenString string) (User, error) {
	if tokenString == "" {
		return UnauthenticatedUser{}, fmt.Errorf("token cannot be empty")
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), v.secret),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return UnauthenticatedUser{}, fmt.Errorf("parse and validate token: %w", err)
	}

	if exp, ok := tok.Expiration(); !ok || exp.IsZero() {
		return UnauthenticatedUser{}, fmt.Errorf("token has no expiry claim")
	}

	subject, _ := tok.Subject()
	return TokenUser{Subject: subject}, nil
}

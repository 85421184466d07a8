// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the security primitives shared by the
// orchestration façade and webhook dispatch: bearer-token issuing and
// verification, HMAC payload signatures, and the user identity model.
package auth

// User represents an authenticated or unauthenticated caller.
type User interface {
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool

	// UserName returns the username of the user. For unauthenticated
	// users, this returns an empty string.
	UserName() string
}

// UnauthenticatedUser represents a caller with no verified credential.
// This implements the Null Object pattern, providing safe defaults for
// authentication operations without requiring nil checks.
type UnauthenticatedUser struct{}

// IsAuthenticated always returns false for unauthenticated users.
func (u UnauthenticatedUser) IsAuthenticated() bool {
	return false
}

// UserName always returns an empty string for unauthenticated users.
func (u UnauthenticatedUser) UserName() string {
	return ""
}

// TokenUser represents a caller whose bearer token passed verification.
type TokenUser struct {
	// Subject is the verified subject claim of the token.
	Subject string
}

// IsAuthenticated always returns true for token users.
func (u TokenUser) IsAuthenticated() bool {
	return true
}

// UserName returns the verified token subject.
func (u TokenUser) UserName() string {
	return u.Subject
}

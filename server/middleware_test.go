// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arzani/a2a/auth"
)

func newAuthChain(t *testing.T, secret string, devBypass bool) http.Handler {
	t.Helper()

	var verifier *auth.TokenVerifier
	if secret != "" {
		v, err := auth.NewTokenVerifier(secret, "")
		if err != nil {
			t.Fatalf("NewTokenVerifier() error = %v", err)
		}
		verifier = v
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		w.Header().Set("X-Subject", user.UserName())
		w.WriteHeader(http.StatusOK)
	})
	return authMiddleware(verifier, devBypass, logger)(next)
}

func TestAuthMiddlewareRequiresToken(t *testing.T) {
	chain := newAuthChain(t, "secret", false)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest("POST", "/broker/tasks/send", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no-credential status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("secret", "", 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	chain := newAuthChain(t, "secret", false)
	req := httptest.NewRequest("POST", "/broker/tasks/send", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Subject"); got != "alice" {
		t.Errorf("verified subject = %q, want alice", got)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	chain := newAuthChain(t, "secret", false)

	req := httptest.NewRequest("POST", "/broker/tasks/send", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	issuer, err := auth.NewTokenIssuer("other-secret", "", 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	token, _ := issuer.Issue("mallory")

	chain := newAuthChain(t, "secret", false)
	req := httptest.NewRequest("POST", "/broker/tasks/send", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("mis-signed token status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareDevBypass(t *testing.T) {
	chain := newAuthChain(t, "", true)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest("POST", "/broker/tasks/send", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("bypass status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Subject"); got != "" {
		t.Errorf("bypass subject = %q, want anonymous", got)
	}
}

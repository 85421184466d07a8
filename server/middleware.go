// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arzani/a2a/auth"
)

type contextKey int

const userContextKey contextKey = iota

// UserFromContext returns the authenticated caller attached by the auth
// middleware. Requests that bypassed verification carry an
// UnauthenticatedUser.
func UserFromContext(ctx context.Context) auth.User {
	if user, ok := ctx.Value(userContextKey).(auth.User); ok {
		return user
	}
	return auth.UnauthenticatedUser{}
}

// authMiddleware verifies the Authorization bearer token on task routes.
// With devBypass set no credential is required; requests still run as an
// unauthenticated user so handlers never see a nil identity.
func authMiddleware(verifier *auth.TokenVerifier, devBypass bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user auth.User = auth.UnauthenticatedUser{}

			token := bearerToken(r)
			if token != "" && verifier != nil {
				verified, err := verifier.Verify(token)
				if err != nil {
					logger.Warn("rejected bearer token", "path", r.URL.Path, "error", err)
					writeJSONError(w, http.StatusUnauthorized, "invalid or expired token", "")
					return
				}
				user = verified
			}

			if !user.IsAuthenticated() && !devBypass {
				writeJSONError(w, http.StatusUnauthorized, "authentication required", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// statusRecorder captures the status code for request logging and
// metrics. It deliberately forwards Flush so SSE handlers keep working
// behind the middleware chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// observeMiddleware logs each request and records its latency.
func observeMiddleware(logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			if metrics != nil {
				metrics.RequestDuration.
					WithLabelValues(route, strconv.Itoa(recorder.status)).
					Observe(elapsed.Seconds())
			}
			logger.Info("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", elapsed,
			)
		})
	}
}

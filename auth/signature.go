// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 signature of payload under
// secret. The signature covers the exact byte sequence of payload, so
// callers must sign the serialized form they transmit.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC-SHA256 of
// payload under secret. The comparison is constant-time.
func VerifySignature(signature string, payload []byte, secret string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(expected, mac.Sum(nil))
}

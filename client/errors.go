// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "fmt"

// DiscoveryError reports a failure to fetch or decode a remote agent
// card.
type DiscoveryError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// SendError reports a failed synchronous task submission, including the
// upstream error text when the remote agent returned one.
type SendError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("send failed for %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the wire protocol for talking to one remote
// specialist agent: capability discovery, synchronous task submission,
// and subscribed streaming.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/arzani/a2a"
)

// DefaultTimeout bounds synchronous round trips when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Client talks to a single remote agent endpoint.
type Client struct {
	baseURL     string
	hc          *http.Client
	bearerToken string
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a Client bound to the agent at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the remote agent's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Discover fetches the remote agent's capability card from the
// well-known path.
func (c *Client) Discover(ctx context.Context) (*a2a.AgentCard, error) {
	targetURL := c.baseURL + a2a.AgentCardWellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, &DiscoveryError{URL: targetURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &DiscoveryError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DiscoveryError{URL: targetURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var card a2a.AgentCard
	dec := jsontext.NewDecoder(resp.Body)
	if err := json.UnmarshalDecode(dec, &card); err != nil {
		return nil, &DiscoveryError{URL: targetURL, Err: fmt.Errorf("decode agent card: %w", err)}
	}

	return &card, nil
}

// SendTask submits a task message synchronously and returns the remote
// agent's reply. The call is bounded by the configured timeout.
func (c *Client) SendTask(ctx context.Context, taskID string, message a2a.Message) (*a2a.AgentEvent, error) {
	targetURL := c.baseURL + a2a.TaskSendPath

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(a2a.SendTaskRequest{TaskID: taskID, Message: &message})
	if err != nil {
		return nil, &SendError{URL: targetURL, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, &SendError{URL: targetURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &SendError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SendError{URL: targetURL, Err: upstreamError(resp)}
	}

	var event a2a.AgentEvent
	dec := jsontext.NewDecoder(resp.Body)
	if err := json.UnmarshalDecode(dec, &event); err != nil {
		return nil, &SendError{URL: targetURL, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &event, nil
}

// upstreamError extracts the upstream error text from a non-2xx
// response body so SendError can carry it.
func upstreamError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func (c *Client) setAuth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
}

// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/arzani/a2a"
)

// Callbacks receive the outcomes of a streaming subscription. The
// subscribe call itself returns before the remote exchange completes,
// so every outcome, including setup failure, arrives through these.
type Callbacks struct {
	// OnUpdate receives each decoded task delta.
	OnUpdate func(event a2a.AgentEvent)

	// OnComplete fires once when a terminal state arrives and the
	// connection has been closed.
	OnComplete func()

	// OnError fires on any transport or protocol failure, after the
	// connection has been closed.
	OnError func(err error)
}

// Subscription is a handle to an open streaming subscription.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel tears the subscription down from the caller's side.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Done returns a channel closed when the subscription has finished,
// whichever way it ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.done) })
}

// SendTaskSubscribe opens a subscribed connection to the remote agent's
// streaming endpoint and dispatches decoded events to cb. It never
// fails synchronously; setup errors are delivered through cb.OnError.
// The returned Subscription cancels the exchange from the caller's side.
func (c *Client) SendTaskSubscribe(ctx context.Context, taskID string, message a2a.Message, cb Callbacks) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer sub.finish()
		defer cancel()
		c.subscribe(ctx, taskID, message, cb)
	}()

	return sub
}

func (c *Client) subscribe(ctx context.Context, taskID string, message a2a.Message, cb Callbacks) {
	targetURL, err := c.subscribeURL(taskID, message)
	if err != nil {
		cb.OnError(err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		cb.OnError(err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.setAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		cb.OnError(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cb.OnError(upstreamError(resp))
		return
	}

	c.readEvents(ctx, resp.Body, cb)
}

func (c *Client) subscribeURL(taskID string, message a2a.Message) (string, error) {
	encoded, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	query := url.Values{}
	query.Set("task_id", taskID)
	query.Set("message", string(encoded))

	return c.baseURL + a2a.TaskSendSubscribePath + "?" + query.Encode(), nil
}

// readEvents decodes the SSE stream and dispatches until a terminal
// event, a transport failure, or cancellation.
func (c *Client) readEvents(ctx context.Context, body io.Reader, cb Callbacks) {
	reader := bufio.NewReader(body)
	var eventType string
	var data []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				// The remote closed without a terminal event.
				cb.OnError(fmt.Errorf("stream closed before terminal state: %w", err))
				return
			}
			cb.OnError(fmt.Errorf("read stream: %w", err))
			return
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if eventType != "" && len(data) > 0 {
				if done := c.dispatch(eventType, data, cb); done {
					return
				}
			}
			eventType, data = "", nil
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(line[len("data:"):])...)
		}
	}
}

// dispatch decodes one event and invokes the matching callback. It
// reports whether the subscription is finished.
func (c *Client) dispatch(eventType string, data []byte, cb Callbacks) bool {
	switch eventType {
	case string(a2a.EventTypeStatus):
		var ev a2a.StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("skipping undecodable status event", "error", err)
			return false
		}
		if ev.State == a2a.StatusConnected {
			// Synthetic channel-open marker, not a task delta.
			return false
		}
		state := a2a.TaskState(ev.State)
		cb.OnUpdate(a2a.AgentEvent{TaskID: ev.TaskID, State: state, Metadata: ev.Metadata})
		if state.IsTerminal() {
			cb.OnComplete()
			return true
		}

	case string(a2a.EventTypeMessage):
		var ev a2a.MessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("skipping undecodable message event", "error", err)
			return false
		}
		cb.OnUpdate(a2a.AgentEvent{TaskID: ev.TaskID, Message: &ev.Message})

	case string(a2a.EventTypeArtifact):
		var ev a2a.ArtifactEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("skipping undecodable artifact event", "error", err)
			return false
		}
		cb.OnUpdate(a2a.AgentEvent{TaskID: ev.TaskID, Artifacts: []a2a.Artifact{ev.Artifact}})

	case string(a2a.EventTypeError):
		var ev a2a.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			cb.OnError(fmt.Errorf("remote error event: %s", data))
			return true
		}
		cb.OnError(errors.New(ev.Error))
		return true

	default:
		c.logger.Debug("ignoring unknown stream event", "event", eventType)
	}

	return false
}

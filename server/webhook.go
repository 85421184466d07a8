// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/arzani/a2a"
	"github.com/arzani/a2a/auth"
)

// DefaultWebhookTimeout bounds a single delivery attempt.
const DefaultWebhookTimeout = 10 * time.Second

// defaultWebhookEvents is the event set used when a registration does
// not narrow it. Error events are stream-only and never pushed.
var defaultWebhookEvents = []a2a.EventType{
	a2a.EventTypeStatus,
	a2a.EventTypeMessage,
	a2a.EventTypeArtifact,
}

// WebhookRegistration is one task's push notification subscription. At
// most one registration exists per task; re-registering replaces it.
type WebhookRegistration struct {
	TaskID   string          `json:"task_id"`
	URL      string          `json:"url"`
	Secret   string          `json:"-"`
	Events   []a2a.EventType `json:"events,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// wants reports whether the registration subscribes to eventType.
func (r *WebhookRegistration) wants(eventType a2a.EventType) bool {
	for _, want := range r.Events {
		if want == eventType {
			return true
		}
	}
	return false
}

// Dispatcher delivers signed push notifications to registered webhook
// URLs. Delivery is single-attempt and best-effort: failures are logged
// and never surface to the task pipeline.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations map[string]*WebhookRegistration

	defaultSecret string
	hc            *http.Client
	logger        *slog.Logger
	metrics       *Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the structured logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithDispatcherTimeout bounds each delivery attempt.
func WithDispatcherTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.hc.Timeout = timeout
	}
}

// WithDispatcherHTTPClient replaces the delivery HTTP client.
func WithDispatcherHTTPClient(hc *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.hc = hc
	}
}

// WithDispatcherMetrics records delivery outcomes.
func WithDispatcherMetrics(metrics *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a Dispatcher. Registrations whose own secret is
// empty are signed with defaultSecret.
func NewDispatcher(defaultSecret string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registrations: make(map[string]*WebhookRegistration),
		defaultSecret: defaultSecret,
		hc:            &http.Client{Timeout: DefaultWebhookTimeout},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register records a push notification subscription for taskID,
// replacing any previous one. An empty event list subscribes to status,
// message and artifact events.
func (d *Dispatcher) Register(taskID, webhookURL string, reg WebhookRegistration) error {
	if taskID == "" {
		return &a2a.ValidationError{Field: "task_id", Reason: "cannot be empty"}
	}
	if webhookURL == "" {
		return &a2a.ValidationError{Field: "url", Reason: "cannot be empty"}
	}
	parsed, err := url.Parse(webhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &a2a.ValidationError{Field: "url", Reason: "must be an absolute URL"}
	}

	for _, eventType := range reg.Events {
		switch eventType {
		case a2a.EventTypeStatus, a2a.EventTypeMessage, a2a.EventTypeArtifact:
		default:
			return &a2a.ValidationError{
				Field:  "events",
				Reason: fmt.Sprintf("unsupported event type %q", eventType),
			}
		}
	}

	stored := &WebhookRegistration{
		TaskID:   taskID,
		URL:      webhookURL,
		Secret:   reg.Secret,
		Events:   reg.Events,
		Metadata: reg.Metadata,
	}
	if stored.Secret == "" {
		stored.Secret = d.defaultSecret
	}
	if len(stored.Events) == 0 {
		stored.Events = defaultWebhookEvents
	}

	d.mu.Lock()
	d.registrations[taskID] = stored
	d.mu.Unlock()

	d.logger.Info("registered webhook", "task_id", taskID, "url", webhookURL)
	return nil
}

// Unregister drops the subscription for taskID, if any.
func (d *Dispatcher) Unregister(taskID string) {
	d.mu.Lock()
	delete(d.registrations, taskID)
	d.mu.Unlock()
}

// Registration returns the current subscription for taskID, or nil.
func (d *Dispatcher) Registration(taskID string) *WebhookRegistration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registrations[taskID]
}

// Notify delivers one event to taskID's webhook, if a registration
// exists and subscribes to the event type. The notification body is
// signed with HMAC-SHA256 over the exact bytes sent.
func (d *Dispatcher) Notify(ctx context.Context, taskID string, eventType a2a.EventType, data any) {
	d.mu.RLock()
	reg := d.registrations[taskID]
	d.mu.RUnlock()

	if reg == nil || !reg.wants(eventType) {
		return
	}

	notification := a2a.Notification{
		TaskID:    taskID,
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Metadata:  reg.Metadata,
	}

	body, err := sonic.ConfigDefault.Marshal(notification)
	if err != nil {
		d.logger.Error("failed to marshal webhook notification",
			"task_id", taskID, "event", eventType, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("failed to build webhook request",
			"task_id", taskID, "url", reg.URL, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(a2a.HeaderSignatureTimestamp, strconv.FormatInt(notification.Timestamp.Unix(), 10))
	if reg.Secret != "" {
		req.Header.Set(a2a.HeaderSignature, auth.Sign(body, reg.Secret))
	}

	resp, err := d.hc.Do(req)
	if err != nil {
		d.deliveryFailed(taskID, reg.URL, eventType, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.deliveryFailed(taskID, reg.URL, eventType,
			fmt.Errorf("webhook returned status %d", resp.StatusCode))
		return
	}

	if d.metrics != nil {
		d.metrics.WebhookSends.WithLabelValues("delivered").Inc()
	}
	d.logger.Info("delivered webhook notification",
		"task_id", taskID, "event", eventType, "url", reg.URL)
}

// deliveryFailed logs and counts a failed attempt. There is no retry:
// push notifications are advisory and the task pipeline never blocks on
// them.
func (d *Dispatcher) deliveryFailed(taskID, url string, eventType a2a.EventType, err error) {
	if d.metrics != nil {
		d.metrics.WebhookSends.WithLabelValues("failed").Inc()
	}
	d.logger.Warn("webhook delivery failed",
		"task_id", taskID, "event", eventType, "url", url, "error", err)
}

// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	TasksCreated    *prometheus.CounterVec
	TaskTransitions *prometheus.CounterVec
	ActiveStreams   prometheus.Gauge
	WebhookSends    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. A nil
// registerer leaves them unregistered, which tests use to avoid
// duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "tasks_created_total",
			Help:      "Tasks created, by specialist agent type.",
		}, []string{"agent_type"}),
		TaskTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "task_transitions_total",
			Help:      "Accepted task state transitions, by target state.",
		}, []string{"state"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "a2a",
			Name:      "active_streams",
			Help:      "Currently open Server-Sent Events channels.",
		}),
		WebhookSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts, by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "a2a",
			Name:      "request_duration_seconds",
			Help:      "Inbound request latency, by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksCreated,
			m.TaskTransitions,
			m.ActiveStreams,
			m.WebhookSends,
			m.RequestDuration,
		)
	}
	return m
}

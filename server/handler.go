// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/arzani/a2a"
	"github.com/arzani/a2a/client"
	"github.com/arzani/a2a/server/task"
)

// Handler is the orchestration façade: it owns the inbound REST surface
// and coordinates the task manager, agent directory, stream broker, and
// webhook dispatcher on each request.
type Handler struct {
	tasks     *task.Manager
	streams   *StreamRegistry
	directory *Directory
	webhooks  *Dispatcher

	idleTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

// NewHandler wires the façade from its collaborators. A non-positive
// idleTimeout disables the streaming watchdog.
func NewHandler(tasks *task.Manager, streams *StreamRegistry, directory *Directory, webhooks *Dispatcher, idleTimeout time.Duration, logger *slog.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:       tasks,
		streams:     streams,
		directory:   directory,
		webhooks:    webhooks,
		idleTimeout: idleTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Register installs the façade's routes on mux. Discovery stays outside
// the auth chain; protect wraps every task route.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	mux.HandleFunc("GET /{agentType}/.well-known/agent.json", h.handleAgentCard)
	mux.Handle("POST /{agentType}/tasks/send", protect(http.HandlerFunc(h.handleSendTask)))
	mux.Handle("GET /{agentType}/tasks/sendSubscribe", protect(http.HandlerFunc(h.handleSendTaskSubscribe)))
	mux.Handle("GET /{agentType}/tasks", protect(http.HandlerFunc(h.handleListTasks)))
	mux.Handle("GET /{agentType}/tasks/{taskID}/status", protect(http.HandlerFunc(h.handleTaskStatus)))
	mux.Handle("POST /{agentType}/tasks/{taskID}/cancel", protect(http.HandlerFunc(h.handleCancelTask)))
	mux.Handle("POST /{agentType}/tasks/{taskID}/pushNotification", protect(http.HandlerFunc(h.handleRegisterWebhook)))
}

// handleAgentCard serves the specialist agent's capability card at the
// well-known discovery path.
func (h *Handler) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	entry, err := h.directory.Resolve(r.PathValue("agentType"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, entry.Card)
}

// handleSendTask is the synchronous submission path: record the task,
// forward the message upstream, fold the reply into the record, and
// return the full task.
func (h *Handler) handleSendTask(w http.ResponseWriter, r *http.Request) {
	agentType := r.PathValue("agentType")
	entry, err := h.directory.Resolve(agentType)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	var req a2a.SendTaskRequest
	if err := decodeBody(r.Body, &req); err != nil {
		h.writeError(w, &a2a.ValidationError{Field: "body", Reason: err.Error()}, "")
		return
	}
	if req.TaskID == "" {
		h.writeError(w, &a2a.ValidationError{Field: "task_id", Reason: "cannot be empty"}, "")
		return
	}
	if req.Message == nil {
		h.writeError(w, &a2a.ValidationError{Field: "message", Reason: "cannot be empty"}, "")
		return
	}
	if err := req.Message.Validate(); err != nil {
		h.writeError(w, &a2a.ValidationError{Field: "message", Reason: err.Error()}, req.TaskID)
		return
	}

	created := h.tasks.Create(req.TaskID, agentType)
	if h.metrics != nil && created.State == a2a.TaskStateSubmitted && len(created.Messages) == 0 {
		h.metrics.TasksCreated.WithLabelValues(agentType).Inc()
	}

	if _, err := h.transition(req.TaskID, a2a.TaskStateWorking, nil); err != nil {
		h.writeError(w, err, req.TaskID)
		return
	}
	h.appendMessage(req.TaskID, *req.Message)

	reply, err := entry.Client.SendTask(r.Context(), req.TaskID, *req.Message)
	if err != nil {
		h.failTask(req.TaskID, err)
		h.writeError(w, &a2a.UpstreamError{Agent: agentType, Op: "send", Err: err}, req.TaskID)
		return
	}

	h.applyAgentEvent(req.TaskID, *reply)
	h.finishIfRunning(req.TaskID)

	updated, err := h.tasks.Get(req.TaskID)
	if err != nil {
		h.writeError(w, err, req.TaskID)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleSendTaskSubscribe is the streaming path: open a channel to the
// caller, subscribe to the upstream agent, and mirror every delta to the
// task record, the channel, and any webhook.
func (h *Handler) handleSendTaskSubscribe(w http.ResponseWriter, r *http.Request) {
	agentType := r.PathValue("agentType")
	entry, err := h.directory.Resolve(agentType)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	query := r.URL.Query()
	taskID := query.Get("task_id")
	if taskID == "" {
		taskID = uuid.NewString()
	}

	rawMessage := query.Get("message")
	if rawMessage == "" {
		h.writeError(w, &a2a.ValidationError{Field: "message", Reason: "cannot be empty"}, taskID)
		return
	}
	var message a2a.Message
	if err := sonic.ConfigDefault.UnmarshalFromString(rawMessage, &message); err != nil {
		h.writeError(w, &a2a.ValidationError{Field: "message", Reason: err.Error()}, taskID)
		return
	}
	if err := message.Validate(); err != nil {
		h.writeError(w, &a2a.ValidationError{Field: "message", Reason: err.Error()}, taskID)
		return
	}

	created := h.tasks.Create(taskID, agentType)
	if created.State.IsTerminal() {
		h.writeError(w, &a2a.InvalidTransitionError{
			TaskID: taskID,
			From:   created.State,
			To:     a2a.TaskStateWorking,
		}, taskID)
		return
	}
	if h.metrics != nil && created.State == a2a.TaskStateSubmitted && len(created.Messages) == 0 {
		h.metrics.TasksCreated.WithLabelValues(agentType).Inc()
	}

	stream, err := h.streams.Open(taskID, w, r)
	if err != nil {
		h.writeError(w, err, taskID)
		return
	}
	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	if _, err := h.transition(taskID, a2a.TaskStateWorking, nil); err != nil {
		stream.EmitError(err)
		<-stream.Done()
		return
	}
	h.appendMessage(taskID, message)

	upstreamCtx, cancelUpstream := context.WithCancel(r.Context())
	defer cancelUpstream()

	// The watchdog force-fails the task when the upstream goes quiet.
	// It must exist before the subscription starts so the callbacks
	// always see it.
	var watchdog *time.Timer
	if h.idleTimeout > 0 {
		watchdog = time.AfterFunc(h.idleTimeout, func() {
			cancelUpstream()
			// Store write first; observers only ever see persisted state.
			err := fmt.Errorf("no upstream event within %s", h.idleTimeout)
			h.failTask(taskID, err)
			stream.EmitError(err)
		})
		defer watchdog.Stop()
	}

	sub := entry.Client.SendTaskSubscribe(upstreamCtx, taskID, message, client.Callbacks{
		OnUpdate: func(event a2a.AgentEvent) {
			if watchdog != nil {
				watchdog.Reset(h.idleTimeout)
			}
			h.applyAgentEvent(taskID, event)
		},
		OnComplete: func() {
			if watchdog != nil {
				watchdog.Stop()
			}
			h.finishIfRunning(taskID)
		},
		OnError: func(err error) {
			if watchdog != nil {
				watchdog.Stop()
			}
			h.failTask(taskID, err)
			stream.EmitError(err)
		},
	})
	defer sub.Cancel()

	// Hold the connection until the channel is torn down, whether by a
	// terminal event's grace close or a client disconnect.
	<-stream.Done()
}

// handleTaskStatus returns the task's current state. The projection is
// deliberately narrow so polling stays cheap regardless of how much
// history the task has accumulated.
func (h *Handler) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")

	record, err := h.tasks.Get(taskID)
	if err != nil {
		h.writeError(w, err, taskID)
		return
	}
	if record.AgentType != r.PathValue("agentType") {
		h.writeError(w, &a2a.TaskNotFoundError{TaskID: taskID}, taskID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":    record.ID,
		"state":      record.State,
		"updated_at": record.UpdatedAt,
	})
}

// handleListTasks returns the tasks routed to one specialist agent,
// newest first, optionally filtered by state.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := task.Filter{AgentType: r.PathValue("agentType")}
	if state := r.URL.Query().Get("state"); state != "" {
		taskState := a2a.TaskState(state)
		if !taskState.IsValid() {
			h.writeError(w, &a2a.ValidationError{Field: "state", Reason: "unknown state"}, "")
			return
		}
		filter.State = taskState
	}

	tasks := h.tasks.List(filter)
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleCancelTask cancels a running task. Cancellation of a task
// already in a terminal state is a no-op returning the current state.
func (h *Handler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		// An empty or absent body means the default reason.
		_ = decodeBody(r.Body, &req)
	}

	before, err := h.tasks.Get(taskID)
	if err != nil {
		h.writeError(w, err, taskID)
		return
	}

	record, err := h.tasks.Cancel(taskID, req.Reason)
	if err != nil {
		h.writeError(w, err, taskID)
		return
	}

	if !before.State.IsTerminal() && record.State == a2a.TaskStateCanceled {
		if h.metrics != nil {
			h.metrics.TaskTransitions.WithLabelValues(string(a2a.TaskStateCanceled)).Inc()
		}
		h.emitStatus(taskID, a2a.TaskStateCanceled, record.Metadata)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":  record.ID,
		"state":    record.State,
		"metadata": record.Metadata,
	})
}

// handleRegisterWebhook records a push notification subscription for a
// task.
func (h *Handler) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskID")

	if _, err := h.tasks.Get(taskID); err != nil {
		h.writeError(w, err, taskID)
		return
	}

	var req struct {
		URL      string          `json:"url"`
		Secret   string          `json:"secret"`
		Events   []a2a.EventType `json:"events"`
		Metadata map[string]any  `json:"metadata"`
	}
	if err := decodeBody(r.Body, &req); err != nil {
		h.writeError(w, &a2a.ValidationError{Field: "body", Reason: err.Error()}, taskID)
		return
	}

	err := h.webhooks.Register(taskID, req.URL, WebhookRegistration{
		Secret:   req.Secret,
		Events:   req.Events,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(w, err, taskID)
		return
	}

	writeJSON(w, http.StatusCreated, h.webhooks.Registration(taskID))
}

// applyAgentEvent folds one upstream delta into the task record and
// fans it out to stream subscribers and the task's webhook. The record
// is always written before any notification goes out.
func (h *Handler) applyAgentEvent(taskID string, event a2a.AgentEvent) {
	if event.Error != "" {
		h.failTask(taskID, errors.New(event.Error))
		return
	}

	if event.Message != nil {
		h.appendMessage(taskID, *event.Message)
	}
	for _, artifact := range event.Artifacts {
		h.appendArtifact(taskID, artifact)
	}
	if event.State != "" {
		// An upstream echo of the current state is not a transition and
		// must not produce a duplicate status event.
		if record, err := h.tasks.Get(taskID); err == nil && record.State == event.State {
			if len(event.Metadata) > 0 {
				if _, err := h.tasks.Update(taskID, task.Update{Metadata: event.Metadata}); err != nil {
					h.logger.Warn("dropping upstream metadata", "task_id", taskID, "error", err)
				}
			}
			return
		}
		if _, err := h.transition(taskID, event.State, event.Metadata); err != nil {
			h.logger.Warn("dropping upstream state change",
				"task_id", taskID, "state", event.State, "error", err)
		}
	} else if len(event.Metadata) > 0 {
		if _, err := h.tasks.Update(taskID, task.Update{Metadata: event.Metadata}); err != nil {
			h.logger.Warn("dropping upstream metadata", "task_id", taskID, "error", err)
		}
	}
}

// transition moves the task to state and fans the status event out.
// Completion stamps the completion_time metadata key.
func (h *Handler) transition(taskID string, state a2a.TaskState, metadata map[string]any) (*a2a.Task, error) {
	if state == a2a.TaskStateCompleted {
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		if _, ok := metadata[a2a.MetadataCompletionTime]; !ok {
			metadata[a2a.MetadataCompletionTime] = time.Now().UTC().Format(time.RFC3339)
		}
	}

	updated, err := h.tasks.Update(taskID, task.Update{State: state, Metadata: metadata})
	if err != nil {
		return nil, err
	}

	if h.metrics != nil {
		h.metrics.TaskTransitions.WithLabelValues(string(state)).Inc()
	}
	h.emitStatus(taskID, state, metadata)
	return updated, nil
}

// finishIfRunning completes a task whose upstream exchange ended without
// an explicit terminal state.
func (h *Handler) finishIfRunning(taskID string) {
	record, err := h.tasks.Get(taskID)
	if err != nil || record.State.IsTerminal() || record.State == a2a.TaskStateInputRequired {
		return
	}
	if _, err := h.transition(taskID, a2a.TaskStateCompleted, nil); err != nil {
		h.logger.Warn("could not complete task", "task_id", taskID, "error", err)
	}
}

// failTask force-fails the task, recording the cause. A task that
// already reached a terminal state is left untouched.
func (h *Handler) failTask(taskID string, cause error) {
	_, err := h.transition(taskID, a2a.TaskStateFailed, map[string]any{
		a2a.MetadataError: cause.Error(),
	})
	if err != nil {
		var transitionErr *a2a.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			h.logger.Error("could not fail task", "task_id", taskID, "error", err)
		}
	}
}

func (h *Handler) appendMessage(taskID string, message a2a.Message) {
	if _, err := h.tasks.AppendMessage(taskID, message); err != nil {
		h.logger.Warn("dropping message append", "task_id", taskID, "error", err)
		return
	}

	event := a2a.MessageEvent{TaskID: taskID, Message: message, Timestamp: time.Now().UTC()}
	for _, stream := range h.streams.StreamsForTask(taskID) {
		stream.EmitMessage(message)
	}
	go h.webhooks.Notify(context.Background(), taskID, a2a.EventTypeMessage, event)
}

func (h *Handler) appendArtifact(taskID string, artifact a2a.Artifact) {
	if _, err := h.tasks.AppendArtifact(taskID, artifact); err != nil {
		h.logger.Warn("dropping artifact append", "task_id", taskID, "error", err)
		return
	}

	event := a2a.ArtifactEvent{TaskID: taskID, Artifact: artifact, Timestamp: time.Now().UTC()}
	for _, stream := range h.streams.StreamsForTask(taskID) {
		stream.EmitArtifact(artifact)
	}
	go h.webhooks.Notify(context.Background(), taskID, a2a.EventTypeArtifact, event)
}

func (h *Handler) emitStatus(taskID string, state a2a.TaskState, metadata map[string]any) {
	event := a2a.StatusEvent{
		TaskID:    taskID,
		State:     string(state),
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	for _, stream := range h.streams.StreamsForTask(taskID) {
		stream.EmitStatus(string(state), metadata)
	}
	go h.webhooks.Notify(context.Background(), taskID, a2a.EventTypeStatus, event)
}

// writeError maps the error taxonomy onto HTTP statuses and writes the
// JSON error body.
func (h *Handler) writeError(w http.ResponseWriter, err error, taskID string) {
	status := http.StatusInternalServerError

	var (
		validationErr *a2a.ValidationError
		notFoundErr   *a2a.TaskNotFoundError
		agentErr      *a2a.AgentNotFoundError
		authErr       *a2a.AuthenticationError
		transitionErr *a2a.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr), errors.As(err, &agentErr):
		status = http.StatusNotFound
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.As(err, &transitionErr):
		status = http.StatusConflict
	}

	writeJSONError(w, status, err.Error(), taskID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.ConfigDefault.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, message, taskID string) {
	body := map[string]any{"error": message}
	if taskID != "" {
		body["task_id"] = taskID
	}
	writeJSON(w, status, body)
}

func decodeBody(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := sonic.ConfigDefault.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

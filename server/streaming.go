// Copyright 2025 The Arzani Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/arzani/a2a"
)

// DefaultGraceDelay is how long a stream stays open after a terminal
// event so final updates can drain to the client.
const DefaultGraceDelay = time.Second

// Stream is one live Server-Sent Events connection observing a task.
// All emission primitives are harmless no-ops once the stream is
// closed.
type Stream struct {
	id     string
	taskID string

	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool

	done       chan struct{}
	closeTimer *time.Timer
	onClose    func(*Stream)
	grace      time.Duration
	logger     *slog.Logger
}

// ID returns the generated channel id.
func (s *Stream) ID() string {
	return s.id
}

// TaskID returns the task this channel observes.
func (s *Stream) TaskID() string {
	return s.taskID
}

// Done returns a channel closed when the stream has been torn down.
// The HTTP handler blocks on it to keep the connection open.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// EmitStatus emits a status event. A terminal state schedules the
// stream's grace-delay close.
func (s *Stream) EmitStatus(state string, metadata map[string]any) {
	s.emit(a2a.EventTypeStatus, a2a.StatusEvent{
		TaskID:    s.taskID,
		State:     state,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})

	if a2a.TaskState(state).IsTerminal() {
		s.scheduleClose()
	}
}

// EmitMessage emits a message event.
func (s *Stream) EmitMessage(message a2a.Message) {
	s.emit(a2a.EventTypeMessage, a2a.MessageEvent{
		TaskID:    s.taskID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// EmitArtifact emits an artifact event.
func (s *Stream) EmitArtifact(artifact a2a.Artifact) {
	s.emit(a2a.EventTypeArtifact, a2a.ArtifactEvent{
		TaskID:    s.taskID,
		Artifact:  artifact,
		Timestamp: time.Now().UTC(),
	})
}

// EmitError emits an error event and schedules the grace-delay close:
// an error is the stream's final word.
func (s *Stream) EmitError(err error) {
	s.emit(a2a.EventTypeError, a2a.ErrorEvent{
		TaskID:    s.taskID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
	s.scheduleClose()
}

func (s *Stream) emit(eventType a2a.EventType, event any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	data, err := sonic.ConfigDefault.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal stream event",
			"task_id", s.taskID, "event", eventType, "error", err)
		return
	}

	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data)
	s.flusher.Flush()
}

// scheduleClose arms the grace-delay close once.
func (s *Stream) scheduleClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.closeTimer != nil {
		return
	}
	s.closeTimer = time.AfterFunc(s.grace, s.Close)
}

// Close releases the connection and removes the stream from its
// registry. Closing an already-closed stream is a no-op.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
}

// StreamRegistry owns the live stream channels, keyed by generated
// channel id with a per-task index for fan-in from the façade.
type StreamRegistry struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	byTask  map[string]map[string]*Stream

	grace  time.Duration
	logger *slog.Logger
}

// NewStreamRegistry creates a StreamRegistry. A non-positive grace
// delay falls back to DefaultGraceDelay.
func NewStreamRegistry(grace time.Duration, logger *slog.Logger) *StreamRegistry {
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamRegistry{
		streams: make(map[string]*Stream),
		byTask:  make(map[string]map[string]*Stream),
		grace:   grace,
		logger:  logger,
	}
}

// Open upgrades the response to a Server-Sent Events connection,
// registers a new stream for taskID, and emits the synthetic connected
// status. Transport-level disconnects tear the stream down the same way
// an explicit Close does.
func (r *StreamRegistry) Open(taskID string, w http.ResponseWriter, req *http.Request) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by connection")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // for Nginx proxying

	stream := &Stream{
		id:      uuid.NewString(),
		taskID:  taskID,
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
		grace:   r.grace,
		logger:  r.logger,
		onClose: r.remove,
	}

	r.mu.Lock()
	r.streams[stream.id] = stream
	if r.byTask[taskID] == nil {
		r.byTask[taskID] = make(map[string]*Stream)
	}
	r.byTask[taskID][stream.id] = stream
	r.mu.Unlock()

	// Client disconnect must clean up exactly like Close.
	go func() {
		select {
		case <-req.Context().Done():
			stream.Close()
		case <-stream.done:
		}
	}()

	stream.EmitStatus(a2a.StatusConnected, nil)

	r.logger.Info("opened stream", "task_id", taskID, "channel_id", stream.id)
	return stream, nil
}

// StreamsForTask returns the active streams observing taskID.
func (r *StreamRegistry) StreamsForTask(taskID string) []*Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streams := make([]*Stream, 0, len(r.byTask[taskID]))
	for _, stream := range r.byTask[taskID] {
		streams = append(streams, stream)
	}
	return streams
}

// CloseTask closes every stream observing taskID.
func (r *StreamRegistry) CloseTask(taskID string) {
	for _, stream := range r.StreamsForTask(taskID) {
		stream.Close()
	}
}

// CloseAll closes every active stream; used on shutdown.
func (r *StreamRegistry) CloseAll() {
	r.mu.RLock()
	open := make([]*Stream, 0, len(r.streams))
	for _, stream := range r.streams {
		open = append(open, stream)
	}
	r.mu.RUnlock()

	for _, stream := range open {
		stream.Close()
	}
}

// Count returns the number of active streams.
func (r *StreamRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

func (r *StreamRegistry) remove(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.streams, s.id)
	if taskStreams, ok := r.byTask[s.taskID]; ok {
		delete(taskStreams, s.id)
		if len(taskStreams) == 0 {
			delete(r.byTask, s.taskID)
		}
	}
	r.logger.Info("closed stream", "task_id", s.taskID, "channel_id", s.id)
}

package metrics

import (
	"time"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure Metrics implements the observer port.
var _ driven.PipelineObserver = (*Metrics)(nil)

// EventAccepted counts an accepted submission.
func (m *Metrics) EventAccepted(t domain.EventType) {
	m.EventsSubmittedTotal.WithLabelValues(string(t)).Inc()
}

// EventRejected counts a synchronous rejection.
func (m *Metrics) EventRejected(reason string) {
	m.EventsRejectedTotal.WithLabelValues(reason).Inc()
}

// TaskStarted tracks a worker picking up a task.
func (m *Metrics) TaskStarted() {
	m.TasksInFlight.Inc()
}

// TaskSettled records a task outcome and duration.
func (m *Metrics) TaskSettled(t domain.EventType, status domain.TaskStatus, d time.Duration) {
	m.TasksInFlight.Dec()
	m.TasksCompletedTotal.WithLabelValues(string(t), string(status)).Inc()
	m.TaskDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

// ChunkEmbedded counts a persisted chunk embedding.
func (m *Metrics) ChunkEmbedded() {
	m.ChunksEmbeddedTotal.Inc()
}

// ChunkFailed counts a chunk whose embedding retries were exhausted.
func (m *Metrics) ChunkFailed() {
	m.ChunksFailedTotal.Inc()
}

// DocumentReady counts a document reaching the ready state.
func (m *Metrics) DocumentReady() {
	m.DocumentsReadyTotal.Inc()
}

// SearchExecuted counts an executed search query.
func (m *Metrics) SearchExecuted() {
	m.SearchQueriesTotal.Inc()
}

// QAExecuted counts an executed QA query.
func (m *Metrics) QAExecuted() {
	m.QAQueriesTotal.Inc()
}

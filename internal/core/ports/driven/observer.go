package driven

import (
	"time"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// PipelineObserver receives instrumentation callbacks from the core. The
// metrics adapter implements it; tests and minimal setups use NopObserver.
type PipelineObserver interface {
	EventAccepted(t domain.EventType)
	EventRejected(reason string)
	TaskStarted()
	TaskSettled(t domain.EventType, status domain.TaskStatus, d time.Duration)
	ChunkEmbedded()
	ChunkFailed()
	DocumentReady()
	SearchExecuted()
	QAExecuted()
}

// NopObserver discards all callbacks.
type NopObserver struct{}

var _ PipelineObserver = NopObserver{}

func (NopObserver) EventAccepted(domain.EventType)                                 {}
func (NopObserver) EventRejected(string)                                           {}
func (NopObserver) TaskStarted()                                                   {}
func (NopObserver) TaskSettled(domain.EventType, domain.TaskStatus, time.Duration) {}
func (NopObserver) ChunkEmbedded()                                                 {}
func (NopObserver) ChunkFailed()                                                   {}
func (NopObserver) DocumentReady()                                                 {}
func (NopObserver) SearchExecuted()                                                {}
func (NopObserver) QAExecuted()                                                    {}

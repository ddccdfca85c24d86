package driving

import (
	"context"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// Dashboard aggregates corpus and queue statistics for the insights view.
type Dashboard struct {
	TotalDocuments   int                           `json:"total_documents"`
	DocumentsByState map[domain.DocumentStatus]int `json:"documents_by_state"`
	TotalChunks      int                           `json:"total_chunks"`
	EmbeddedChunks   int                           `json:"embedded_chunks"`
	FailedChunks     int                           `json:"failed_chunks"`
	TasksByStatus    map[domain.TaskStatus]int     `json:"tasks_by_status"`
	PendingTasks     int                           `json:"pending_tasks"`
	RecentEvents     []domain.Event                `json:"recent_events"`

	// DailyThroughput covers the trailing ingestion window, oldest day
	// first, with a point for every day even when nothing was uploaded.
	DailyThroughput []ThroughputPoint `json:"daily_throughput"`

	// SummarisedCompliance is the share of ready documents that carry a
	// summary, in [0, 1]. Zero when no document is ready.
	SummarisedCompliance float64 `json:"summarised_compliance"`

	// SLAAtRisk counts live documents whose due date has passed or falls
	// inside the risk horizon without a summary in place.
	SLAAtRisk int `json:"sla_at_risk"`
}

// ThroughputPoint is one day of the dashboard's ingestion series.
type ThroughputPoint struct {
	Date     string `json:"date"` // YYYY-MM-DD, UTC
	Uploaded int    `json:"uploaded"`
}

// InsightsService assembles aggregate views over the stored corpus.
type InsightsService interface {
	// Dashboard returns corpus-wide statistics and recent activity.
	Dashboard(ctx context.Context) (*Dashboard, error)
}

// SettingsService reads and updates runtime settings. Updates affect tasks
// submitted after the change; in-flight tasks keep the snapshot captured at
// submission.
type SettingsService interface {
	// Get returns the current settings.
	Get(ctx context.Context) (domain.Settings, error)

	// Update validates and persists new settings.
	Update(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

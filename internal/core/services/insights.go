package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

const (
	// recentEventsInDashboard bounds the activity feed on the dashboard.
	recentEventsInDashboard = 20

	// throughputWindowDays is the length of the daily ingestion series.
	throughputWindowDays = 14

	// slaRiskHorizon is how far ahead of a due date a document without a
	// summary counts as at risk.
	slaRiskHorizon = 24 * time.Hour
)

// Ensure Insights implements the interfaces.
var (
	_ driving.InsightsService = (*Insights)(nil)
	_ driving.SettingsService = (*Insights)(nil)
)

// Insights assembles aggregate corpus and queue statistics and owns the
// runtime settings surface.
type Insights struct {
	docs      driven.DocumentStore
	queue     driven.TaskQueue
	events    driven.EventStore
	summaries driven.SummaryStore
	config    driven.ConfigStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewInsights creates the insights and settings service.
func NewInsights(docs driven.DocumentStore, queue driven.TaskQueue, events driven.EventStore, summaries driven.SummaryStore, config driven.ConfigStore, log zerolog.Logger) *Insights {
	return &Insights{
		docs:      docs,
		queue:     queue,
		events:    events,
		summaries: summaries,
		config:    config,
		now:       time.Now,
		log:       log.With().Str("component", "insights").Logger(),
	}
}

// Dashboard returns corpus-wide statistics and recent activity.
func (i *Insights) Dashboard(ctx context.Context) (*driving.Dashboard, error) {
	stats, err := i.docs.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus stats: %w", err)
	}
	taskCounts, err := i.queue.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("task counts: %w", err)
	}
	recent, err := i.events.ListRecent(ctx, recentEventsInDashboard)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	throughput, compliance, atRisk, err := i.corpusHealth(ctx)
	if err != nil {
		return nil, err
	}
	return &driving.Dashboard{
		TotalDocuments:       stats.TotalDocuments,
		DocumentsByState:     stats.DocumentsByState,
		TotalChunks:          stats.TotalChunks,
		EmbeddedChunks:       stats.EmbeddedChunks,
		FailedChunks:         stats.FailedChunks,
		TasksByStatus:        taskCounts,
		PendingTasks:         taskCounts[domain.TaskPending],
		RecentEvents:         recent,
		DailyThroughput:      throughput,
		SummarisedCompliance: compliance,
		SLAAtRisk:            atRisk,
	}, nil
}

// corpusHealth walks the document list once and derives the daily upload
// series, the summarised share of ready documents, and the count of live
// documents at risk of missing their due date.
func (i *Insights) corpusHealth(ctx context.Context) ([]driving.ThroughputPoint, float64, int, error) {
	docs, err := i.docs.ListDocuments(ctx, -1, 0)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list documents: %w", err)
	}

	now := i.now().UTC()
	windowStart := startOfDay(now).AddDate(0, 0, -(throughputWindowDays - 1))
	series := make([]driving.ThroughputPoint, throughputWindowDays)
	dayIndex := make(map[string]int, throughputWindowDays)
	for d := range series {
		date := windowStart.AddDate(0, 0, d).Format("2006-01-02")
		series[d] = driving.ThroughputPoint{Date: date}
		dayIndex[date] = d
	}

	var ready, summarised, atRisk int
	for _, doc := range docs {
		if idx, ok := dayIndex[doc.UploadedAt.UTC().Format("2006-01-02")]; ok {
			series[idx].Uploaded++
		}

		hasSummary := false
		if doc.Status != domain.StatusDeleted {
			if _, err := i.summaries.Get(ctx, doc.ID); err == nil {
				hasSummary = true
			}
		}
		if doc.Status == domain.StatusReady {
			ready++
			if hasSummary {
				summarised++
			}
		}
		if doc.DueAt != nil && doc.Status != domain.StatusDeleted && !hasSummary &&
			doc.DueAt.Before(now.Add(slaRiskHorizon)) {
			atRisk++
		}
	}

	compliance := 0.0
	if ready > 0 {
		compliance = float64(summarised) / float64(ready)
	}
	return series, compliance, atRisk, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Get returns the current settings.
func (i *Insights) Get(ctx context.Context) (domain.Settings, error) {
	settings, err := i.config.Load(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.Normalised(), nil
}

// Update validates and persists new settings. Tasks already submitted keep
// the snapshot captured at their submission.
func (i *Insights) Update(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	settings = settings.Normalised()
	if err := i.config.Save(ctx, settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	i.log.Info().Msg("settings updated")
	return settings, nil
}

// Package rest exposes the core services over an HTTP API. Writes flow
// through the event dispatcher; everything else is a synchronous read.
package rest

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/ports/driving"
	"github.com/doculens-ai/doculens/internal/metrics"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8080"
	DefaultBodyLimit  = 64 << 20 // 64 MiB uploads
)

// Config holds the HTTP server configuration.
type Config struct {
	// ListenAddr is the address to bind (default: :8080).
	ListenAddr string

	// UploadDir is where multipart document uploads are stored before
	// ingestion picks them up.
	UploadDir string

	// BodyLimit caps request body size in bytes (default: 64 MiB).
	BodyLimit int
}

// Services bundles the driving ports the API is built on.
type Services struct {
	Dispatcher driving.EventDispatcher
	Documents  driving.DocumentService
	History    driving.HistoryService
	Labels     driving.LabelService
	Insights   driving.InsightsService
	Settings   driving.SettingsService
}

// Server is the Fiber HTTP server.
type Server struct {
	app        *fiber.App
	listenAddr string
	log        zerolog.Logger
}

// NewServer builds the server and registers all routes.
func NewServer(cfg Config, svc Services, m *metrics.Metrics, log zerolog.Logger) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.BodyLimit == 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:        app,
		listenAddr: cfg.ListenAddr,
		log:        log.With().Str("component", "rest").Logger(),
	}

	if m != nil {
		app.Use(httpMetrics(m))
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	var (
		events    = &eventHandler{dispatcher: svc.Dispatcher, history: svc.History}
		documents = &documentHandler{dispatcher: svc.Dispatcher, documents: svc.Documents, history: svc.History, uploadDir: cfg.UploadDir}
		labels    = &labelHandler{labels: svc.Labels}
		insights  = &insightsHandler{insights: svc.Insights}
		config    = &configHandler{settings: svc.Settings}
		check     = app.Group("/check")
		apiv1     = app.Group("/api/v1")
	)

	check.Get("/healthy", handleHealthy)

	apiv1.Post("/events", events.handleSubmit)
	apiv1.Get("/events", events.handleList)
	apiv1.Get("/events/:id", events.handleGet)
	apiv1.Get("/answers", events.handleAnswers)
	apiv1.Get("/searches", events.handleSearches)

	apiv1.Post("/documents", documents.handleUpload)
	apiv1.Get("/documents", documents.handleList)
	apiv1.Get("/documents/:id", documents.handleGet)
	apiv1.Get("/documents/:id/chunks", documents.handleChunks)
	apiv1.Get("/documents/:id/summary", documents.handleSummary)
	apiv1.Get("/documents/:id/classifications", documents.handleClassifications)

	apiv1.Post("/labels/domains", labels.handleAddDomain)
	apiv1.Post("/labels", labels.handleAddLabel)
	apiv1.Delete("/labels/:id", labels.handleDelete)
	apiv1.Get("/labels", labels.handleTaxonomy)
	apiv1.Get("/labels/candidates", labels.handleCandidates)

	apiv1.Get("/insights/dashboard", insights.handleDashboard)
	apiv1.Get("/config", config.handleGet)
	apiv1.Put("/config", config.handleUpdate)

	return s
}

// Start begins serving. It blocks until the listener stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.listenAddr).Msg("http server listening")
	return s.app.Listen(s.listenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server stopping")
	return s.app.ShutdownWithContext(ctx)
}

// httpMetrics records request counts and latency per route.
func httpMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if ferr, ok := err.(*fiber.Error); ok {
				status = ferr.Code
			}
		}

		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// handleHealthy is the liveness probe.
func handleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Package cli provides the doculens command line interface.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/doculens-ai/doculens/internal/adapters/driving/rest"
	"github.com/doculens-ai/doculens/internal/adapters/driving/watcher"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

// version is injected by main at startup.
var version = "dev"

// Runtime carries the wired components commands operate on. It is built in
// main and installed before Execute runs.
type Runtime struct {
	Server   *rest.Server
	Workers  driving.WorkerService
	Watcher  *watcher.Watcher
	Insights driving.InsightsService
	Log      zerolog.Logger

	// Close releases stores and provider clients after commands finish.
	Close func() error
}

var runtime *Runtime

// SetRuntime installs the wired components.
func SetRuntime(rt *Runtime) {
	runtime = rt
}

var rootCmd = &cobra.Command{
	Use:   "doculens",
	Short: "Document intelligence pipeline",
	Long: `Doculens ingests documents into a searchable, queryable corpus.

Uploads are chunked and embedded asynchronously; questions are answered
with citations grounded in the retrieved chunks.`,
	SilenceUsage: true,
}

// Execute runs the CLI with the given version string.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

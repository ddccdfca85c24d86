package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print corpus and queue statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if runtime == nil {
		return errors.New("runtime not configured")
	}

	dashboard, err := runtime.Insights.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

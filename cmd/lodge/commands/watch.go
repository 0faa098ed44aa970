package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/watch"
)

var (
	watchInstanceName string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live registry activity",
	Long: `Stream authority record events from the registry in real time.

Shows claims, updates, and supersedes as they happen, with the owning
producer and the affected artifact paths. Press Ctrl+C to stop.

Output Formats:
  default - Human-readable with timestamps and event icons
  json    - Line-delimited JSON, one record per line

Examples:
  # Watch the instance for this workspace
  lodge watch

  # Machine-readable stream
  lodge watch --output json | jq .topic`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format: default or json")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Validate output format before connecting
	var format watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	conn, err := connectToInstance(ctx, watchInstanceName, "watch")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := watch.StreamActivity(ctx, conn.Registry, conn.InstanceName, format, os.Stdout); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	return nil
}

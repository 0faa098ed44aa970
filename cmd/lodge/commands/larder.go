package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/larder"
	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/resolver"
	"github.com/dyluth/lodge/internal/timespec"
)

var (
	larderInstanceName string
	larderOutputFormat string
	larderSince        string
	larderUntil        string
	larderTopic        string
	larderProducer     string
)

var larderCmd = &cobra.Command{
	Use:   "larder [RECORD_ID]",
	Short: "Inspect authority records with filtering",
	Long: `Inspect authority records in list or get mode.

List Mode (no RECORD_ID):
  Displays records matching filters as a table or JSONL stream.

Get Mode (with RECORD_ID):
  Displays complete details of a single record as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Output Formats (list mode only):
  default - Human-readable table with ID, Topic, Producer, Version, and Path
  jsonl   - Line-delimited JSON, one record per line

Time Filters (list mode only):
  --since  - Show records created after this time
  --until  - Show records created before this time

Times accept a duration back from now ('1h30m') or RFC3339
('2026-08-21T09:00:00Z').

Examples:
  # List all records in table format
  lodge larder

  # Records from the last hour as JSONL
  lodge larder --output=jsonl --since=1h | jq .id

  # Get specific record by short ID
  lodge larder 1dc91a

  # Records for one producer on pricing topics
  lodge larder --producer=product-owner --topic='pricing-*'`,
	RunE: runLarder,
}

func init() {
	larderCmd.Flags().StringVarP(&larderInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	larderCmd.Flags().StringVarP(&larderOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	// Time-based filters
	larderCmd.Flags().StringVar(&larderSince, "since", "", "Show records after time (duration or RFC3339)")
	larderCmd.Flags().StringVar(&larderUntil, "until", "", "Show records before time (duration or RFC3339)")

	// Content-based filters
	larderCmd.Flags().StringVar(&larderTopic, "topic", "", "Filter by topic (glob pattern)")
	larderCmd.Flags().StringVar(&larderProducer, "producer", "", "Filter by producer (exact match)")

	rootCmd.AddCommand(larderCmd)
}

func runLarder(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Determine mode based on arguments
	isGetMode := len(args) > 0

	// Validate output format (only applies to list mode)
	var outputFormat larder.OutputFormat
	if !isGetMode {
		switch larderOutputFormat {
		case "default":
			outputFormat = larder.OutputFormatDefault
		case "jsonl":
			outputFormat = larder.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", larderOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	conn, err := connectToInstance(ctx, larderInstanceName, "larder")
	if err != nil {
		return err
	}
	defer conn.Close()

	if isGetMode {
		// Get mode: resolve short ID and fetch record
		shortID := args[0]

		fullID, err := resolver.ResolveRecordID(ctx, conn.Registry, shortID)
		if err != nil {
			if resolver.IsNotFoundError(err) {
				return printer.Error(
					fmt.Sprintf("record with ID '%s' not found", shortID),
					"The specified record does not exist in the registry.",
					[]string{
						"List all records:\n  lodge larder",
						fmt.Sprintf("Verify instance:\n  lodge larder --name %s", conn.InstanceName),
					},
				)
			}
			if resolver.IsAmbiguousError(err) {
				ambigErr := err.(*resolver.AmbiguousError)
				fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(ambigErr))
				return fmt.Errorf("ambiguous short ID")
			}
			return fmt.Errorf("failed to resolve record ID: %w", err)
		}

		err = larder.GetRecord(ctx, conn.Registry, fullID, os.Stdout)
		if err != nil {
			if larder.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("record with ID '%s' not found", fullID),
					"The record was resolved but could not be fetched.",
					[]string{
						"This might indicate a race condition. Try again.",
					},
				)
			}
			return fmt.Errorf("failed to get record: %w", err)
		}

		return nil
	}

	// List mode: parse filters and fetch records
	window, err := timespec.ParseWindow(larderSince, larderUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2026-08-21T09:00:00Z'"},
		)
	}

	filterCriteria := &larder.FilterCriteria{
		SinceTimestampMs: window.SinceMs,
		UntilTimestampMs: window.UntilMs,
		TopicGlob:        larderTopic,
		Producer:         larderProducer,
	}

	if err := larder.ListRecords(ctx, conn.Registry, outputFormat, filterCriteria, os.Stdout); err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	return nil
}

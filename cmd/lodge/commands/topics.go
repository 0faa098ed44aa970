package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/larder"
)

var (
	topicsInstanceName string
	topicsProducer     string
	topicsCategory     string
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topic heads",
	Long: `List all claimed topics with their current authoritative record.

For each topic, displays the head version, owning producer, artifact path,
and when the head was recorded.

Examples:
  # All topics
  lodge topics

  # Topics owned by one producer
  lodge topics --producer code-owner

  # Topics in one knowledge tree category
  lodge topics --category market`,
	RunE: runTopics,
}

func init() {
	topicsCmd.Flags().StringVarP(&topicsInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	topicsCmd.Flags().StringVarP(&topicsProducer, "producer", "p", "", "Filter by owning producer (exact match)")
	topicsCmd.Flags().StringVarP(&topicsCategory, "category", "c", "", "Filter by category (exact match)")
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conn, err := connectToInstance(ctx, topicsInstanceName, "topics")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := larder.ListTopics(ctx, conn.Registry, topicsProducer, topicsCategory, os.Stdout); err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	return nil
}

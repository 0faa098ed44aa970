package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/larder"
	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/warden"
	"github.com/dyluth/lodge/pkg/registry"
)

var (
	claimInstanceName string
	claimProducer     string
	claimTopic        string
	claimCategory     string
	claimPath         string
	claimDescription  string
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim ownership of a topic",
	Long: `Claim ownership of a topic by recording an authority record for an artifact.

An unclaimed topic is claimed at version 1. A topic you already own is
versioned forward. A topic owned by another producer can only be claimed
by presenting a live grant from a prior consultation; without one the
claim fails.

The artifact path is relative to the knowledge root and must already
contain your work; lodge records authority, it does not write documents.

Examples:
  # Claim a fresh topic
  lodge claim --producer code-owner --topic technical-health \
    --path general/technical-health.md --description "Runtime stability assessment"

  # Claim into a category
  lodge claim -p fundamental-analyst -t market-entry --category market \
    --path market/entry-analysis.md -d "EU market entry fundamentals"`,
	RunE: runClaim,
}

func init() {
	claimCmd.Flags().StringVarP(&claimInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	claimCmd.Flags().StringVarP(&claimProducer, "producer", "p", "", "Producer identity (required)")
	claimCmd.Flags().StringVarP(&claimTopic, "topic", "t", "", "Topic to claim (required)")
	claimCmd.Flags().StringVarP(&claimCategory, "category", "c", "", "Knowledge tree category (default \"general\")")
	claimCmd.Flags().StringVar(&claimPath, "path", "", "Artifact path relative to the knowledge root (required)")
	claimCmd.Flags().StringVarP(&claimDescription, "description", "d", "", "Scope description recorded on the claim (required)")
	claimCmd.MarkFlagRequired("producer")
	claimCmd.MarkFlagRequired("topic")
	claimCmd.MarkFlagRequired("path")
	claimCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	conn, err := connectToInstance(ctx, claimInstanceName, "claim")
	if err != nil {
		return err
	}
	defer conn.Close()

	w, err := warden.New(conn.Registry, cfg, nil)
	if err != nil {
		return err
	}

	record, err := w.Claim(ctx, warden.ClaimRequest{
		Producer:    claimProducer,
		Topic:       claimTopic,
		Category:    claimCategory,
		Path:        claimPath,
		Description: claimDescription,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownProducer):
			return printer.Error(
				fmt.Sprintf("unknown producer '%s'", claimProducer),
				fmt.Sprintf("Error: %v", err),
				[]string{fmt.Sprintf("Known producers: %v", cfg.ProducerNames())},
			)
		case errors.Is(err, registry.ErrTopicLocked):
			return printer.Error(
				fmt.Sprintf("topic '%s' is locked by another producer", claimTopic),
				fmt.Sprintf("Error: %v", err),
				[]string{
					fmt.Sprintf("Consult first to obtain a directive:\n  lodge consult --producer %s --topic %s --scope \"...\"", claimProducer, claimTopic),
					fmt.Sprintf("Inspect the current head:\n  lodge log %s", claimTopic),
				},
			)
		case errors.Is(err, registry.ErrChainMoved):
			return printer.Error(
				fmt.Sprintf("topic '%s' changed underneath you", claimTopic),
				"Another producer appended to the chain between your read and your write.",
				[]string{
					fmt.Sprintf("Re-read the chain:\n  lodge log %s", claimTopic),
					fmt.Sprintf("Then re-consult and retry:\n  lodge consult --producer %s --topic %s --scope \"...\"", claimProducer, claimTopic),
				},
			)
		default:
			return fmt.Errorf("claim failed: %w", err)
		}
	}

	printer.Success("Authority claimed: topic '%s' v%d by '%s'\n\n", record.Topic, record.Version, record.Producer)

	if err := larder.FormatSingleJSON(os.Stdout, record); err != nil {
		return fmt.Errorf("failed to format record: %w", err)
	}

	return nil
}

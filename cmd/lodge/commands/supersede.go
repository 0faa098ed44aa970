package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/git"
	"github.com/dyluth/lodge/internal/larder"
	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/warden"
	"github.com/dyluth/lodge/pkg/registry"
)

var (
	supersedeInstanceName string
	supersedeProducer     string
	supersedeTopic        string
	supersedeNewPath      string
	supersedeOldPaths     []string
	supersedeReason       string
)

var supersedeCmd = &cobra.Command{
	Use:   "supersede",
	Short: "Replace recorded artifacts with a new authoritative one",
	Long: `Replace one or more recorded artifact paths with a new authoritative artifact.

Appends a new head to the topic's version chain with full provenance:
which paths were replaced, why, and by whom. The chain keeps every prior
version; nothing is deleted from the registry.

Every old path must be recorded on the topic's chain and not already
superseded, so a producer holding stale paths fails fast instead of
silently forking history. Superseding another producer's topic requires
a live grant from a prior consultation, the same as claim.

Examples:
  # Replace a v1 assessment with a revised artifact
  lodge supersede --producer code-owner --topic technical-health \
    --new general/technical-health-v2.md \
    --old general/technical-health.md \
    --reason "Q3 incident data changed the stability picture"

  # Merge two artifacts into one
  lodge supersede -p product-owner -t pricing-strategy \
    --new product/pricing.md --old product/pricing-draft.md --old product/pricing-notes.md \
    -r "Consolidated draft and notes into one document"`,
	RunE: runSupersede,
}

func init() {
	supersedeCmd.Flags().StringVarP(&supersedeInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	supersedeCmd.Flags().StringVarP(&supersedeProducer, "producer", "p", "", "Producer identity (required)")
	supersedeCmd.Flags().StringVarP(&supersedeTopic, "topic", "t", "", "Topic to supersede (required)")
	supersedeCmd.Flags().StringVar(&supersedeNewPath, "new", "", "Replacement artifact path, relative to the knowledge root (required)")
	supersedeCmd.Flags().StringSliceVar(&supersedeOldPaths, "old", nil, "Recorded path being replaced (repeatable, required)")
	supersedeCmd.Flags().StringVarP(&supersedeReason, "reason", "r", "", "Why the old artifacts are being replaced (required)")
	supersedeCmd.MarkFlagRequired("producer")
	supersedeCmd.MarkFlagRequired("topic")
	supersedeCmd.MarkFlagRequired("new")
	supersedeCmd.MarkFlagRequired("old")
	supersedeCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(supersedeCmd)
}

func runSupersede(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	conn, err := connectToInstance(ctx, supersedeInstanceName, "supersede")
	if err != nil {
		return err
	}
	defer conn.Close()

	w, err := warden.New(conn.Registry, cfg, nil)
	if err != nil {
		return err
	}

	record, err := w.Supersede(ctx, warden.SupersedeRequest{
		Producer: supersedeProducer,
		Topic:    supersedeTopic,
		NewPath:  supersedeNewPath,
		OldPaths: supersedeOldPaths,
		Reason:   supersedeReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownProducer):
			return printer.Error(
				fmt.Sprintf("unknown producer '%s'", supersedeProducer),
				fmt.Sprintf("Error: %v", err),
				[]string{fmt.Sprintf("Known producers: %v", cfg.ProducerNames())},
			)
		case errors.Is(err, registry.ErrTopicNotFound):
			return printer.Error(
				fmt.Sprintf("topic '%s' has no chain", supersedeTopic),
				"There is nothing recorded to supersede.",
				[]string{
					fmt.Sprintf("Claim the topic instead:\n  lodge claim --producer %s --topic %s --path %s --description \"...\"", supersedeProducer, supersedeTopic, supersedeNewPath),
					"List known topics:\n  lodge topics",
				},
			)
		case errors.Is(err, registry.ErrTopicLocked):
			return printer.Error(
				fmt.Sprintf("topic '%s' is locked by another producer", supersedeTopic),
				fmt.Sprintf("Error: %v", err),
				[]string{
					fmt.Sprintf("Consult first to obtain a directive:\n  lodge consult --producer %s --topic %s --scope \"...\"", supersedeProducer, supersedeTopic),
				},
			)
		case errors.Is(err, registry.ErrStaleSupersede):
			return printer.Error(
				"supersede is stale against the current chain",
				fmt.Sprintf("Error: %v", err),
				[]string{
					fmt.Sprintf("Re-read the chain to see the current paths:\n  lodge log %s", supersedeTopic),
					"Then rebuild the supersede against the paths actually recorded",
				},
			)
		default:
			return fmt.Errorf("supersede failed: %w", err)
		}
	}

	printer.Success("Topic '%s' superseded: v%d by '%s' replaces %d file(s)\n\n",
		record.Topic, record.Version, record.Producer, len(record.SupersededPaths))

	if err := larder.FormatSingleJSON(os.Stdout, record); err != nil {
		return fmt.Errorf("failed to format record: %w", err)
	}

	// The registry now points at the new artifact; remind the producer to
	// commit the matching workspace changes.
	warnIfWorkspaceDirty()

	return nil
}

func warnIfWorkspaceDirty() {
	checker := git.NewChecker()

	isClean, err := checker.IsWorkspaceClean()
	if err != nil || isClean {
		return
	}

	dirtyFiles, err := checker.GetDirtyFiles()
	if err != nil {
		return
	}

	printer.Warning("\nYour Git workspace has uncommitted changes:\n")
	printer.Info("%s\n", dirtyFiles)
	printer.Info("\nCommit the new artifact (and remove the superseded files) so the\n")
	printer.Info("repository matches the registry:\n")
	printer.Info("  git add . && git commit -m \"Supersede %s\"\n", supersedeTopic)
}

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/warden"
	"github.com/dyluth/lodge/pkg/registry"
)

var (
	validateInstanceName string
	validateProducer     string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workspace is consistent for a producer",
	Long: `Check that the workspace is in a consistent state for a producer to start work.

Verifies:
  • The producer is declared in lodge.yml
  • The registry is reachable
  • No supersede is partially applied (in-flight intent markers)

The check is read-only and idempotent; run it before every unit of work.
Exit code 0 means the workspace is safe to write to.

Examples:
  lodge validate --producer code-owner
  lodge validate --producer product-owner --name prod-instance`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	validateCmd.Flags().StringVarP(&validateProducer, "producer", "p", "", "Producer identity (required)")
	validateCmd.MarkFlagRequired("producer")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	conn, err := connectToInstance(ctx, validateInstanceName, "validate")
	if err != nil {
		return err
	}
	defer conn.Close()

	w, err := warden.New(conn.Registry, cfg, nil)
	if err != nil {
		return err
	}

	if err := w.ValidateWorkspace(ctx, validateProducer); err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownProducer):
			return printer.Error(
				fmt.Sprintf("unknown producer '%s'", validateProducer),
				fmt.Sprintf("Error: %v", err),
				[]string{
					fmt.Sprintf("Known producers: %v", cfg.ProducerNames()),
					"Declare new producers in lodge.yml under 'producers:'",
				},
			)
		case errors.Is(err, registry.ErrWorkspaceInconsistent):
			return printer.Error(
				"workspace is inconsistent",
				fmt.Sprintf("Error: %v", err),
				[]string{
					"Wait for the in-flight supersede to finish (its marker expires on its own if the producer crashed)",
					"Watch registry activity:\n  lodge watch",
				},
			)
		default:
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	printer.Success("Workspace is consistent: producer '%s' may start work\n", validateProducer)
	return nil
}

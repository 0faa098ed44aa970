package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/larder"
	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/pkg/registry"
)

var (
	logInstanceName string
)

var logCmd = &cobra.Command{
	Use:   "log TOPIC",
	Short: "Show a topic's version chain",
	Long: `Show the full version chain for a topic, oldest to newest.

Every record carries complete provenance: who claimed or superseded,
which paths were replaced, and why. The head of the chain is the topic's
current authoritative record.

Examples:
  lodge log technical-health
  lodge log pricing-strategy --name prod-instance`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVarP(&logInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	topic := args[0]

	conn, err := connectToInstance(ctx, logInstanceName, "log")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := larder.ShowChain(ctx, conn.Registry, topic, os.Stdout); err != nil {
		if errors.Is(err, registry.ErrTopicNotFound) {
			return printer.Error(
				fmt.Sprintf("topic '%s' not found", topic),
				"No version chain exists for this topic.",
				[]string{
					"List known topics:\n  lodge topics",
					fmt.Sprintf("Claim it:\n  lodge claim --producer <name> --topic %s --path <rel-path> --description \"...\"", topic),
				},
			)
		}
		return fmt.Errorf("failed to show chain: %w", err)
	}

	return nil
}

package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/git"
	"github.com/dyluth/lodge/internal/manifest"
	"github.com/dyluth/lodge/internal/printer"
)

var (
	syncInstanceName string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rewrite the knowledge manifest from the registry",
	Long: `Rewrite knowledge/registry.yml from the current registry state.

The manifest maps every topic to its head artifact path, owning producer,
and version, so readers can navigate the knowledge tree without querying
Redis. The steward maintains it continuously; run sync to force a rewrite,
for example after restoring a workspace.

The write is atomic (temp file + rename), so readers never see a partial
manifest.

Examples:
  lodge sync
  lodge sync --name prod-instance`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	checker := git.NewChecker()
	gitRoot, err := checker.GetGitRoot()
	if err != nil {
		return fmt.Errorf("failed to locate Git root: %w", err)
	}

	conn, err := connectToInstance(ctx, syncInstanceName, "sync")
	if err != nil {
		return err
	}
	defer conn.Close()

	manifestPath := manifest.FilePath(filepath.Join(gitRoot, cfg.KnowledgeRoot()))
	if err := manifest.Sync(ctx, conn.Registry, manifestPath); err != nil {
		return fmt.Errorf("failed to sync manifest: %w", err)
	}

	printer.Success("Manifest written: %s\n", manifestPath)
	return nil
}

package commands

import (
	"fmt"

	"github.com/dyluth/lodge/internal/git"
	"github.com/dyluth/lodge/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new Lodge project",
	Long: `Initialize a new Lodge project with default configuration and knowledge tree.

Creates:
  • lodge.yml - Project configuration with an example producer
  • knowledge/ - The knowledge tree where authoritative artifacts live

This command must be run from the root of a Git repository.

Use --force to reseed lodge.yml and the knowledge README; documents under
knowledge/ are kept.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Reseed lodge.yml and knowledge/README.md (keeps knowledge documents)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Validate Git context first
	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return err
		}
	}

	// Initialize the project
	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Print success message
	scaffold.PrintSuccess()

	return nil
}

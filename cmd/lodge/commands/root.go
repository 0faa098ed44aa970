package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lodge",
	Short: "Lodge - Topic ownership coordination for shared knowledge bases",
	Long: `Lodge coordinates independent content producers sharing one knowledge base.

Producers consult the registry before writing, claim ownership of the topics
they cover, and supersede stale artifacts with full provenance, so the
knowledge tree keeps exactly one authoritative artifact per topic.

Lodge provides a Redis-backed authority registry with per-topic version
chains, making every ownership decision transparent and auditable.`,
	Version: version,
	// Show help instead of silently succeeding when flags are passed
	// without a subcommand, e.g. "lodge --topic x" instead of
	// "lodge claim --topic x".
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// The printer package renders command errors with color and
	// suggestions; Cobra's own error and usage echo would duplicate it.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

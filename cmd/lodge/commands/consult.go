package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/lodge/internal/printer"
	"github.com/dyluth/lodge/internal/warden"
	"github.com/dyluth/lodge/pkg/registry"
)

var (
	consultInstanceName string
	consultProducer     string
	consultTopic        string
	consultScope        string
	consultOutputFormat string
)

var consultCmd = &cobra.Command{
	Use:   "consult",
	Short: "Ask the registry for a directive before writing",
	Long: `Ask the registry whether a proposed piece of work on a topic needs coordination.

The consultation compares your proposed scope against the topic's current
head and returns one directive:

  proceed              - Topic is unclaimed, or your own head barely overlaps
  update_existing      - You own the head and the scope overlaps it; version it forward
  avoid_duplication    - Another producer's head already covers this scope
  coordinate_required  - Another producer owns the topic; coordinate before writing

Directives that authorize a write (update_existing, coordinate_required)
are recorded as a single-use grant so a follow-up claim or supersede can
present it. Consultation never mutates the topic chain.

Output Formats:
  default - Human-readable directive with explanation and the current head
  plain   - Bare directive string for scripts
  json    - Complete outcome as pretty-printed JSON

Examples:
  # Consult before writing a new assessment
  lodge consult --producer code-owner --topic technical-health --scope "runtime stability assessment"

  # Script-friendly directive only
  lodge consult -p product-owner -t pricing-strategy --scope "Q3 pricing" --output plain`,
	RunE: runConsult,
}

func init() {
	consultCmd.Flags().StringVarP(&consultInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	consultCmd.Flags().StringVarP(&consultProducer, "producer", "p", "", "Producer identity (required)")
	consultCmd.Flags().StringVarP(&consultTopic, "topic", "t", "", "Topic to consult (required)")
	consultCmd.Flags().StringVar(&consultScope, "scope", "", "Description of the proposed work (required)")
	consultCmd.Flags().StringVarP(&consultOutputFormat, "output", "o", "default", "Output format: default, plain, or json")
	consultCmd.MarkFlagRequired("producer")
	consultCmd.MarkFlagRequired("topic")
	consultCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(consultCmd)
}

func runConsult(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Validate output format before touching Docker or Redis
	switch consultOutputFormat {
	case "default", "plain", "json":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", consultOutputFormat),
			[]string{"Valid formats: default, plain, json"},
		)
	}

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}

	conn, err := connectToInstance(ctx, consultInstanceName, "consult")
	if err != nil {
		return err
	}
	defer conn.Close()

	w, err := warden.New(conn.Registry, cfg, nil)
	if err != nil {
		return err
	}

	outcome, err := w.Consult(ctx, consultProducer, consultTopic, consultScope)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownProducer) {
			return printer.Error(
				fmt.Sprintf("unknown producer '%s'", consultProducer),
				fmt.Sprintf("Error: %v", err),
				[]string{fmt.Sprintf("Known producers: %v", cfg.ProducerNames())},
			)
		}
		return fmt.Errorf("consultation failed: %w", err)
	}

	switch consultOutputFormat {
	case "plain":
		fmt.Println(string(outcome.Directive))
	case "json":
		data, err := json.MarshalIndent(consultOutcomeJSON(outcome), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outcome: %w", err)
		}
		fmt.Println(string(data))
	default:
		printConsultOutcome(outcome)
	}

	return nil
}

// consultResult is the JSON shape of a consultation outcome.
type consultResult struct {
	Directive   string                    `json:"directive"`
	Topic       string                    `json:"topic"`
	Producer    string                    `json:"producer"`
	Overlap     float64                   `json:"overlap"`
	Explanation string                    `json:"explanation"`
	Head        *registry.AuthorityRecord `json:"head,omitempty"`
}

func consultOutcomeJSON(outcome *warden.Outcome) consultResult {
	return consultResult{
		Directive:   string(outcome.Directive),
		Topic:       outcome.Topic,
		Producer:    outcome.Producer,
		Overlap:     outcome.Overlap,
		Explanation: outcome.Explanation,
		Head:        outcome.Head,
	}
}

func printConsultOutcome(outcome *warden.Outcome) {
	switch outcome.Directive {
	case registry.DirectiveProceed:
		printer.Success("Directive: %s\n", outcome.Directive)
	case registry.DirectiveAvoidDuplication:
		printer.Warning("Directive: %s\n", outcome.Directive)
	default:
		printer.Info("Directive: %s\n", outcome.Directive)
	}

	printer.Info("\n  %s\n", outcome.Explanation)

	if outcome.Head != nil {
		printer.Info("\nCurrent head:\n")
		printer.Info("  Record:   %s (v%d)\n", outcome.Head.ID, outcome.Head.Version)
		printer.Info("  Producer: %s\n", outcome.Head.Producer)
		printer.Info("  Path:     %s\n", outcome.Head.Path)
	}

	if outcome.Directive.GrantsWrite() {
		printer.Info("\nA single-use write grant was recorded for (%s, %s).\n", outcome.Producer, outcome.Topic)
		printer.Info("Follow up before it expires:\n")
		printer.Info("  lodge claim --producer %s --topic %s --path <rel-path> --description \"...\"\n", outcome.Producer, outcome.Topic)
	}

	if outcome.Directive == registry.DirectiveAvoidDuplication && outcome.Head != nil {
		printer.Info("\nReference the existing artifact instead of writing a new one:\n")
		printer.Info("  %s\n", outcome.Head.Path)
	}
}

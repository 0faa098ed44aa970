// Package warden implements the coordination policy for the authority
// registry: deciding whether a producer may create, update, or must
// coordinate on a topic, and performing claim and supersede mutations
// against the topic chain.
//
// The warden is a thin policy layer over registry.Client. It holds no
// state of its own; every decision is derived from the current chain
// head, the workspace configuration, and the overlap scorer.
package warden

import (
	"fmt"

	"github.com/dyluth/lodge/internal/config"
	"github.com/dyluth/lodge/pkg/registry"
)

// Warden evaluates coordination policy for a single workspace instance.
type Warden struct {
	client *registry.Client
	cfg    *config.LodgeConfig
	scorer Scorer
}

// New creates a Warden over the given registry client and workspace
// configuration. A nil scorer selects the default token-overlap scorer.
func New(client *registry.Client, cfg *config.LodgeConfig, scorer Scorer) (*Warden, error) {
	if client == nil {
		return nil, fmt.Errorf("registry client cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("workspace configuration cannot be nil")
	}
	if scorer == nil {
		scorer = TokenScorer{}
	}
	return &Warden{
		client: client,
		cfg:    cfg,
		scorer: scorer,
	}, nil
}

// Outcome is the result of a consult: the directive the producer must
// follow, plus the evidence that drove the decision.
type Outcome struct {
	// Directive tells the producer how to proceed.
	Directive registry.Directive

	// Topic is the topic that was consulted.
	Topic string

	// Producer is the producer that asked.
	Producer string

	// Head is the current authoritative record for the topic, or nil
	// when the topic is unclaimed.
	Head *registry.AuthorityRecord

	// Overlap is the score that drove the decision: token similarity
	// for same-producer consults, scope containment for cross-producer
	// consults. Zero when the topic is unclaimed.
	Overlap float64

	// Explanation is a human-readable account of the decision, suitable
	// for CLI output and audit logs.
	Explanation string
}

// checkProducer returns ErrUnknownProducer if the named producer is not
// declared in the workspace configuration.
func (w *Warden) checkProducer(producer string) error {
	if !w.cfg.HasProducer(producer) {
		return fmt.Errorf("%w: %q is not declared in lodge.yml (known producers: %v)",
			registry.ErrUnknownProducer, producer, w.cfg.ProducerNames())
	}
	return nil
}

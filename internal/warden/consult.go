package warden

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/lodge/pkg/registry"
)

// Consult evaluates whether the producer may write to the topic and
// returns a directive. The decision is policy over the current chain
// head:
//
//   - Unclaimed topic: proceed.
//   - Same producer as the head: update_existing when the proposed
//     scope substantially overlaps the head's description, proceed
//     otherwise.
//   - Different producer: avoid_duplication when the proposed scope is
//     already covered by the head's description, coordinate_required
//     otherwise. A cross-producer consult never returns proceed; any
//     write into another producer's topic needs an explicit directive.
//
// Directives that authorize a write (coordinate_required,
// update_existing) are persisted as a single-use grant keyed to the
// producer and topic, so a follow-up claim or supersede can present it.
// Consult never mutates the topic chain itself.
func (w *Warden) Consult(ctx context.Context, producer, topic, scope string) (*Outcome, error) {
	if err := w.checkProducer(producer); err != nil {
		return nil, err
	}
	if err := registry.ValidateSlug(topic); err != nil {
		return nil, fmt.Errorf("invalid topic: %w", err)
	}
	if strings.TrimSpace(scope) == "" {
		return nil, fmt.Errorf("scope cannot be empty")
	}

	head, err := w.client.TopicHead(ctx, topic)
	if err != nil {
		if registry.IsNotFound(err) {
			return &Outcome{
				Directive:   registry.DirectiveProceed,
				Topic:       topic,
				Producer:    producer,
				Explanation: fmt.Sprintf("topic %q is unclaimed", topic),
			}, nil
		}
		return nil, fmt.Errorf("failed to read head of topic %q: %w", topic, err)
	}

	outcome := &Outcome{
		Topic:    topic,
		Producer: producer,
		Head:     head,
	}

	if head.Producer == producer {
		outcome.Overlap = w.scorer.Overlap(scope, head.Description)
		if outcome.Overlap >= w.cfg.UpdateThreshold() {
			outcome.Directive = registry.DirectiveUpdateExisting
			outcome.Explanation = fmt.Sprintf(
				"you already hold %q at version %d; scope overlap %.2f meets the update threshold %.2f",
				topic, head.Version, outcome.Overlap, w.cfg.UpdateThreshold())
		} else {
			outcome.Directive = registry.DirectiveProceed
			outcome.Explanation = fmt.Sprintf(
				"you already hold %q; scope overlap %.2f is below the update threshold %.2f",
				topic, outcome.Overlap, w.cfg.UpdateThreshold())
		}
	} else {
		outcome.Overlap = w.scorer.Containment(scope, head.Description)
		if outcome.Overlap >= w.cfg.DuplicationThreshold() {
			outcome.Directive = registry.DirectiveAvoidDuplication
			outcome.Explanation = fmt.Sprintf(
				"%q version %d by %q already covers this scope (containment %.2f >= %.2f)",
				topic, head.Version, head.Producer, outcome.Overlap, w.cfg.DuplicationThreshold())
		} else {
			outcome.Directive = registry.DirectiveCoordinateRequired
			outcome.Explanation = fmt.Sprintf(
				"%q is held by %q at version %d; coordinate before writing (containment %.2f)",
				topic, head.Producer, head.Version, outcome.Overlap)
		}
	}

	if outcome.Directive.GrantsWrite() {
		if err := w.client.PutGrant(ctx, topic, producer, outcome.Directive, w.cfg.GrantTTL()); err != nil {
			return nil, fmt.Errorf("failed to record grant for topic %q: %w", topic, err)
		}
	}

	return outcome, nil
}

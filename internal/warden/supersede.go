package warden

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/lodge/pkg/registry"
)

// SupersedeRequest describes a supersede: replacing one or more
// recorded artifact paths with a new authoritative artifact.
type SupersedeRequest struct {
	Producer string
	Topic    string
	NewPath  string   // workspace-relative path of the replacement artifact
	OldPaths []string // recorded paths being replaced
	Reason   string
}

// Supersede appends a new head to the topic chain that replaces the
// given old paths with a new artifact path.
//
// Every old path must be a path recorded on the current chain that has
// not already been superseded; otherwise Supersede fails with
// ErrStaleSupersede and the chain is left untouched. A topic with no
// chain fails with ErrTopicNotFound. Superseding another producer's
// topic requires a live grant from a prior consult, the same as Claim.
//
// The registry append is bracketed by an intent marker so that
// observers can tell a supersede is in flight. The marker is cleared on
// completion and expires on its own if the producer crashes mid-way.
// If the chain moves between the head read and the append, Supersede
// fails with ErrStaleSupersede; the caller re-reads the chain and
// retries deliberately.
func (w *Warden) Supersede(ctx context.Context, req SupersedeRequest) (*registry.AuthorityRecord, error) {
	if err := w.checkProducer(req.Producer); err != nil {
		return nil, err
	}
	if err := registry.ValidateSlug(req.Topic); err != nil {
		return nil, fmt.Errorf("invalid topic: %w", err)
	}
	if err := registry.ValidateRelPath(req.NewPath); err != nil {
		return nil, fmt.Errorf("invalid new path: %w", err)
	}
	if len(req.OldPaths) == 0 {
		return nil, fmt.Errorf("supersede must name at least one old path")
	}
	for _, p := range req.OldPaths {
		if err := registry.ValidateRelPath(p); err != nil {
			return nil, fmt.Errorf("invalid old path %q: %w", p, err)
		}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("reason cannot be empty")
	}

	chain, err := w.client.TopicChain(ctx, req.Topic)
	if err != nil {
		if registry.IsNotFound(err) {
			return nil, fmt.Errorf("%w: topic %q has no chain to supersede",
				registry.ErrTopicNotFound, req.Topic)
		}
		return nil, fmt.Errorf("failed to read chain for topic %q: %w", req.Topic, err)
	}
	head := chain[len(chain)-1]

	consumeGrant := false
	if head.Producer != req.Producer {
		granted, gerr := w.client.GetGrant(ctx, req.Topic, req.Producer)
		if gerr != nil {
			if registry.IsNotFound(gerr) {
				return nil, fmt.Errorf(
					"%w: topic %q is held by %q; consult first to obtain a directive",
					registry.ErrTopicLocked, req.Topic, head.Producer)
			}
			return nil, fmt.Errorf("failed to check grant for topic %q: %w", req.Topic, gerr)
		}
		if !granted.GrantsWrite() {
			return nil, fmt.Errorf(
				"%w: directive %q for topic %q does not authorize a write",
				registry.ErrTopicLocked, granted, req.Topic)
		}
		consumeGrant = true
	}

	if err := checkPathsCurrent(chain, req.OldPaths); err != nil {
		return nil, err
	}

	ok, err := w.client.SetIntent(ctx, req.Topic, req.Producer, w.cfg.IntentTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to mark supersede intent for topic %q: %w", req.Topic, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another supersede for topic %q is already in flight",
			registry.ErrStaleSupersede, req.Topic)
	}
	defer w.client.ClearIntent(ctx, req.Topic)

	record := &registry.AuthorityRecord{
		ID:              uuid.New().String(),
		Topic:           req.Topic,
		Category:        head.Category,
		Version:         head.Version + 1,
		Producer:        req.Producer,
		Path:            req.NewPath,
		Description:     head.Description,
		Supersedes:      head.ID,
		SupersededPaths: req.OldPaths,
		Reason:          req.Reason,
		CreatedAtMs:     time.Now().UnixMilli(),
	}

	if err := w.client.AppendRecord(ctx, record, head.ID); err != nil {
		if errors.Is(err, registry.ErrChainMoved) {
			return nil, fmt.Errorf("%w: chain for topic %q moved during supersede",
				registry.ErrStaleSupersede, req.Topic)
		}
		return nil, fmt.Errorf("supersede of topic %q failed: %w", req.Topic, err)
	}

	if consumeGrant {
		if _, err := w.client.ConsumeGrant(ctx, req.Topic, req.Producer); err != nil && !registry.IsNotFound(err) {
			return nil, fmt.Errorf("supersede of topic %q committed but grant cleanup failed: %w", req.Topic, err)
		}
	}

	return record, nil
}

// checkPathsCurrent verifies that every old path is recorded on the
// chain and has not already been superseded by a later record.
func checkPathsCurrent(chain []*registry.AuthorityRecord, oldPaths []string) error {
	recorded := make(map[string]struct{}, len(chain))
	replaced := make(map[string]struct{})
	for _, rec := range chain {
		recorded[rec.Path] = struct{}{}
		for _, p := range rec.SupersededPaths {
			replaced[p] = struct{}{}
		}
	}

	for _, p := range oldPaths {
		if _, ok := recorded[p]; !ok {
			return fmt.Errorf("%w: path %q is not recorded on the chain",
				registry.ErrStaleSupersede, p)
		}
		if _, ok := replaced[p]; ok {
			return fmt.Errorf("%w: path %q was already superseded",
				registry.ErrStaleSupersede, p)
		}
	}
	return nil
}

package warden

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/lodge/pkg/registry"
)

// ClaimRequest describes a claim: the producer asserting authority over
// a topic and the artifact that carries it.
type ClaimRequest struct {
	Producer    string
	Topic       string
	Category    string // defaults to registry.DefaultCategory when empty
	Path        string // workspace-relative path of the artifact
	Description string
}

// Claim asserts the producer's authority over the topic, appending a
// new record to the topic chain.
//
// An unclaimed topic is claimed at version 1. A topic already headed by
// the same producer is versioned forward. A topic headed by a different
// producer can only be claimed by presenting a live grant from a prior
// consult; the grant is consumed by the successful claim. Without one,
// Claim fails with ErrTopicLocked.
//
// A concurrent append between the head read and the write surfaces as
// ErrChainMoved; the caller re-consults and retries deliberately.
func (w *Warden) Claim(ctx context.Context, req ClaimRequest) (*registry.AuthorityRecord, error) {
	if err := w.checkProducer(req.Producer); err != nil {
		return nil, err
	}
	if err := registry.ValidateSlug(req.Topic); err != nil {
		return nil, fmt.Errorf("invalid topic: %w", err)
	}
	category := req.Category
	if category == "" {
		category = registry.DefaultCategory
	}
	if err := registry.ValidateRelPath(req.Path); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	record := &registry.AuthorityRecord{
		ID:          uuid.New().String(),
		Topic:       req.Topic,
		Category:    category,
		Version:     1,
		Producer:    req.Producer,
		Path:        req.Path,
		Description: req.Description,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	expectedHeadID := ""
	consumeGrant := false

	head, err := w.client.TopicHead(ctx, req.Topic)
	switch {
	case err == nil:
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
		record.Version = head.Version + 1
		record.Supersedes = head.ID
		expectedHeadID = head.ID

	case registry.IsNotFound(err):
		// Unclaimed topic: version 1, no predecessor.

	default:
		return nil, fmt.Errorf("failed to read head of topic %q: %w", req.Topic, err)
	}

	if err := w.client.AppendRecord(ctx, record, expectedHeadID); err != nil {
		return nil, fmt.Errorf("claim of topic %q failed: %w", req.Topic, err)
	}

	if consumeGrant {
		if _, err := w.client.ConsumeGrant(ctx, req.Topic, req.Producer); err != nil && !registry.IsNotFound(err) {
			return nil, fmt.Errorf("claim of topic %q committed but grant cleanup failed: %w", req.Topic, err)
		}
	}

	return record, nil
}

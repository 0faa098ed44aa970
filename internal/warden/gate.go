package warden

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/lodge/pkg/registry"
)

// ValidateWorkspace checks that the workspace is in a consistent state
// for the producer to start work: the producer is declared, the
// registry is reachable, and no supersede is partially applied.
//
// The check is read-only and idempotent; it is safe to run before every
// unit of work. A non-nil error wrapping ErrWorkspaceInconsistent means
// the workspace must not be written to until the condition clears
// (in-flight intents expire on their own if their owner crashed).
func (w *Warden) ValidateWorkspace(ctx context.Context, producer string) error {
	if err := w.checkProducer(producer); err != nil {
		return err
	}

	if err := w.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: registry unreachable: %v", registry.ErrWorkspaceInconsistent, err)
	}

	intents, err := w.client.ActiveIntents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list in-flight supersedes: %w", err)
	}
	if len(intents) > 0 {
		return fmt.Errorf("%w: supersede in flight for topics: %s",
			registry.ErrWorkspaceInconsistent, strings.Join(intents, ", "))
	}

	return nil
}

// Package watch streams live registry activity for `lodge watch`.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dyluth/lodge/pkg/registry"
)

// OutputFormat selects how streamed events are rendered.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON for piping.
	OutputFormatJSON OutputFormat = "json"
)

// StreamActivity subscribes to record events and renders each one until
// the context is canceled. In the default format a banner goes to the
// writer first; JSON output stays clean for piping.
func StreamActivity(ctx context.Context, client *registry.Client, instanceName string, format OutputFormat, w io.Writer) error {
	formatter, err := newFormatter(format, w)
	if err != nil {
		return err
	}

	sub, err := client.SubscribeRecordEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to record events: %w", err)
	}
	defer sub.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(w, "Watching instance '%s' (Ctrl+C to stop)...\n", instanceName)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case record, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := formatter.FormatRecord(record); err != nil {
				return fmt.Errorf("failed to render record event: %w", err)
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			// Malformed events are reported but never stop the stream.
			fmt.Fprintf(os.Stderr, "⚠️  Event error: %v\n", err)
		}
	}
}

// PollForRecord polls until the record with the given ID is readable or
// the timeout elapses. Polls every 200ms.
func PollForRecord(ctx context.Context, client *registry.Client, recordID string, timeout time.Duration) (*registry.AuthorityRecord, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for record after %v", timeout)

		case <-ticker.C:
			record, err := client.GetRecord(ctx, recordID)
			if err != nil {
				if registry.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query for record: %w", err)
			}
			return record, nil
		}
	}
}

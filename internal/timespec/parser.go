// Package timespec parses the human-facing time arguments accepted by
// record-filtering commands.
package timespec

import (
	"fmt"
	"time"
)

// A Window bounds a record query by creation time. A zero field means
// that end of the window is open.
type Window struct {
	SinceMs int64
	UntilMs int64
}

// Parse turns a single time argument into a Unix-millisecond timestamp.
// Two forms are accepted:
//   - an RFC3339 timestamp such as "2026-08-21T09:00:00Z"
//   - a Go duration such as "90m" or "1h30m", measured back from now
func Parse(arg string) (int64, error) {
	if arg == "" {
		return 0, fmt.Errorf("empty time argument")
	}

	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(arg); err == nil {
		return time.Now().Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("cannot parse %q as a time: use a duration like '1h30m' or an RFC3339 timestamp like '2026-08-21T09:00:00Z'", arg)
}

// ParseWindow parses the --since/--until pair into a Window. Empty
// strings leave the corresponding bound open. When both bounds are set,
// since must fall before until.
func ParseWindow(since, until string) (Window, error) {
	var win Window

	if since != "" {
		ms, err := Parse(since)
		if err != nil {
			return Window{}, fmt.Errorf("invalid --since: %w", err)
		}
		win.SinceMs = ms
	}

	if until != "" {
		ms, err := Parse(until)
		if err != nil {
			return Window{}, fmt.Errorf("invalid --until: %w", err)
		}
		win.UntilMs = ms
	}

	if win.SinceMs > 0 && win.UntilMs > 0 && win.SinceMs >= win.UntilMs {
		return Window{}, fmt.Errorf("--since must be before --until")
	}

	return win, nil
}

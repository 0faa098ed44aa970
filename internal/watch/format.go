package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/lodge/pkg/registry"
)

// Formatter renders one record event.
type Formatter interface {
	FormatRecord(record *registry.AuthorityRecord) error
}

func newFormatter(format OutputFormat, w io.Writer) (Formatter, error) {
	switch format {
	case OutputFormatDefault:
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{encoder: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// defaultFormatter writes timestamped human-readable lines.
type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatRecord(record *registry.AuthorityRecord) error {
	stamp := time.UnixMilli(record.CreatedAtMs).Format("15:04:05")

	var line string
	switch {
	case record.Version <= 1:
		line = fmt.Sprintf("✨ Claimed: topic=%s v%d by=%s → %s",
			record.Topic, record.Version, record.Producer, record.Path)
	case len(record.SupersededPaths) > 0:
		line = fmt.Sprintf("🔄 Superseded: topic=%s v%d by=%s replaced %d file(s) → %s",
			record.Topic, record.Version, record.Producer, len(record.SupersededPaths), record.Path)
	default:
		line = fmt.Sprintf("🔄 Updated: topic=%s v%d by=%s → %s",
			record.Topic, record.Version, record.Producer, record.Path)
	}

	if _, err := fmt.Fprintf(f.writer, "[%s] %s\n", stamp, line); err != nil {
		return err
	}

	if record.Reason != "" {
		if _, err := fmt.Fprintf(f.writer, "           reason: %s\n", record.Reason); err != nil {
			return err
		}
	}

	return nil
}

// jsonFormatter emits one JSON object per event.
type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) FormatRecord(record *registry.AuthorityRecord) error {
	return f.encoder.Encode(record)
}

package event

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// TraceLogger renders events as log lines.
func TraceLogger(logger zerolog.Logger) Subscriber {
	return func(e Event) {
		ev := logger.Info().
			Time(zerolog.TimestampFieldName, e.Time).
			Str("session", e.Session).
			Str("event", string(e.Type))
		if e.Command != "" {
			ev = ev.Str("cmd", e.Command)
		}
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ev = ev.Interface(k, e.Data[k])
		}
		ev.Msg("trace")
	}
}

// TraceOutput interprets a GIT_TRACE value. "", "0" and "false" disable
// tracing; "1", "2" and "true" trace to stderr; an absolute path appends to
// that file. The returned closer must be closed when tracing ends.
func TraceOutput(value string, stderr io.Writer) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "no", "off":
		return nil, nil, nil
	case "1", "2", "true", "yes", "on":
		return stderr, io.NopCloser(nil), nil
	}
	if !filepath.IsAbs(value) {
		return nil, nil, fmt.Errorf("GIT_TRACE: %q is not an absolute path", value)
	}
	f, err := os.OpenFile(value, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("GIT_TRACE: %w", err)
	}
	return f, f, nil
}

// NewTraceLogger returns a plain console logger for trace output.
func NewTraceLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05",
	})
}

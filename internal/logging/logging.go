// Package logging configures the process-wide structured logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Setup configures a zerolog.Logger: a human-readable console writer
// when stdout is a TTY, JSON lines otherwise (batch/CI contexts). Every
// record is expected to carry ts/level/component/event fields, added by
// callers via With().Str(...).
func Setup(component string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var base zerolog.Logger
	if term.IsTerminal(int(os.Stdout.Fd())) {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stdout)
	}
	return base.With().Timestamp().Str("component", component).Logger()
}

// Event logs a structured record with the required event field plus
// arbitrary key/value fields.
func Event(log zerolog.Logger, level zerolog.Level, event string, fields map[string]interface{}) {
	e := log.WithLevel(level).Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Send()
}

// DecisionReasonLogger returns a logger dedicated to decision-gate
// diagnostics; reason codes are logged verbatim so gate-dominance
// analysis can grep them directly.
func DecisionReasonLogger(base zerolog.Logger) zerolog.Logger {
	return base.With().Str("component", "decision").Logger()
}

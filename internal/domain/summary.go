package domain

import (
	"log/slog"
	"time"
)

// RunSummary counts what happened to candidates during a single run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Discovered int
	Filtered   int
	Truncated  int
	Requested  int
	Enriched   int
	Discarded  int
	Sent       int
	Failed     int

	LedgerSize int
}

// Duration is the wall time spent by the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// LogValue lets slog print the summary as a group.
func (s RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("discovered", s.Discovered),
		slog.Int("filtered", s.Filtered),
		slog.Int("truncated", s.Truncated),
		slog.Int("requested", s.Requested),
		slog.Int("enriched", s.Enriched),
		slog.Int("discarded", s.Discarded),
		slog.Int("sent", s.Sent),
		slog.Int("failed", s.Failed),
		slog.Int("ledger_size", s.LedgerSize),
		slog.Duration("duration", s.Duration()),
	)
}

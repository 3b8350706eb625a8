package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DealsScanner/internal/domain"
)

func read(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", m)
	return 0
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	started := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)
	summary := domain.RunSummary{
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Discovered: 40,
		Filtered:   25,
		Sent:       3,
		Failed:     1,
		LedgerSize: 57,
	}

	r.ObserveRun(summary, nil)
	r.ObserveRun(domain.RunSummary{Discovered: 2}, errors.New("boom"))
	r.Throttled("catalog")
	r.Throttled("catalog")

	assert.Equal(t, 1.0, read(t, r.runs.WithLabelValues("partial")))
	assert.Equal(t, 1.0, read(t, r.runs.WithLabelValues("error")))
	assert.Equal(t, 42.0, read(t, r.candidates.WithLabelValues("discovered")))
	assert.Equal(t, 3.0, read(t, r.candidates.WithLabelValues("sent")))
	assert.Equal(t, 0.0, read(t, r.ledgerEntries))
	assert.Equal(t, float64(summary.FinishedAt.Unix()), read(t, r.lastRun))
	assert.Equal(t, 2.0, read(t, r.throttled.WithLabelValues("catalog")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveRun(domain.RunSummary{Sent: 2, LedgerSize: 9}, nil)

	path := filepath.Join(t.TempDir(), "textfile", "dealsscanner.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `dealsscanner_runs_total{outcome="success"} 1`), text)
	assert.Contains(t, text, "dealsscanner_ledger_entries 9")

	require.NoError(t, r.WriteTextfile(""))
}

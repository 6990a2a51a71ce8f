package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("warosu", NewScopedAPI("adapter", rec))

	scoped.ReportWarning("search", "page", 2)
	scoped.ReportCount("posts", 24)

	reports := rec.Reports()
	require.Len(t, reports, 2)
	require.Equal(t, "adapter: warosu: search", reports[0].ID)
	require.Equal(t, []any{"page", 2}, reports[0].Params)
	require.Equal(t, LevelCount, reports[1].Level)
	require.Equal(t, int64(24), reports[1].Count)
}

func TestOrDiscard(t *testing.T) {
	require.Equal(t, Discard{}, OrDiscard(nil))
	rec := &Recorder{}
	require.Same(t, rec, OrDiscard(rec))

	// a nil inner api must not panic
	NewScopedAPI("x", nil).ReportBroken("y")
	NewMetricsAPI(nil).ReportWarning("y")
}

func TestMetricsAPIForwards(t *testing.T) {
	rec := &Recorder{}
	tel := NewMetricsAPI(rec)

	tel.ReportBroken("session.bootstrap", "no cookies")
	tel.ReportWarning("adapter.search", "timeout")
	tel.ReportDebug("ready")
	tel.ReportCount("session.generation", 3)

	require.Len(t, rec.Matching(LevelBroken, "session"), 1)
	require.Len(t, rec.Matching(LevelWarning, "adapter"), 1)
	require.Len(t, rec.Matching(LevelDebug, "ready"), 1)
	require.Len(t, rec.Matching(LevelCount, "generation"), 1)
}

func TestSlogAPI(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tel := SlogAPI{Logger: logger}

	tel.ReportWarning("warosu: adapter.search", errors.New("timeout"), "g", 2)
	out := buf.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, `id="warosu: adapter.search"`)
	require.Contains(t, out, "err=timeout")
	require.Contains(t, out, "p1=g")
	require.Contains(t, out, "p2=2")

	buf.Reset()
	tel.ReportDebug("session ready", 3)
	require.Contains(t, buf.String(), `msg="session ready"`)
	require.NotContains(t, buf.String(), "id=")
}

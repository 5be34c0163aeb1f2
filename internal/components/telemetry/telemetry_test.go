package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	mem := NewMemoryAPI()
	scoped := NewScopedAPI("extract", NewScopedAPI("pipeline", mem))

	scoped.ReportBroken("extractor.extract", "gba", errors.New("boom"))
	scoped.ReportWarning("extractor.extract", "gba sp")
	scoped.ReportDebug("extractor.parse", 1)
	scoped.ReportCount("candidates", 3)
	scoped.ReportCount("candidates", 5)

	reports := mem.Reports()
	require.Len(t, reports, 5)
	require.Equal(t, "pipeline: extract: extractor.extract", reports[0].ID)

	require.Len(t, mem.Find(SeverityBroken, "extractor.extract"), 1)
	require.Len(t, mem.Find(SeverityWarning, "extractor.extract"), 1)
	require.Len(t, mem.Find(SeverityDebug, "extractor.parse"), 1)
	require.Empty(t, mem.Find(SeverityBroken, "extractor.parse"))

	count, ok := mem.Count("candidates")
	require.True(t, ok)
	require.Equal(t, int64(5), count)

	_, ok = mem.Count("missing")
	require.False(t, ok)
}

func TestSlogAPI(t *testing.T) {
	var out bytes.Buffer
	api := SlogAPI{Logger: slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))}

	api.ReportBroken("transport.fetch", "gba", errors.New("connection reset"))
	require.Contains(t, out.String(), "level=ERROR")
	require.Contains(t, out.String(), "id=transport.fetch")
	require.Contains(t, out.String(), `params.1="connection reset"`)

	out.Reset()
	api.ReportCount("results", 7)
	require.Contains(t, out.String(), "id=results n=7")
}

package chrono

import (
	"testing"

	"forarchives/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStandardCron(t *testing.T) {
	c := NewStandardCron(telemetry.Discard{})
	defer c.Stop()

	require.NoError(t, c.Cron("*/5 * * * *", func() {}))
	require.NoError(t, c.Cron("@every 1h", func() {}))
	require.Error(t, c.Cron("not a spec", func() {}))
}

func TestCronLoggerParams(t *testing.T) {
	rec := &telemetry.Recorder{}
	logger := cronLogger{tel: rec}
	logger.Info("schedule", "entry", 1, "dangling")

	reports := rec.Reports()
	require.Len(t, reports, 1)
	require.Equal(t, "cron: schedule", reports[0].ID)
	require.Equal(t, []any{"entry: 1"}, reports[0].Params)
}

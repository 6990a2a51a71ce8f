package telemetry

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAPI writes reports to Logger, slog.Default() when nil. Errors among the
// params are logged under "err", everything else as "p<index>".
type SlogAPI struct {
	Logger *slog.Logger
}

func (s SlogAPI) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func attrs(params []any) []any {
	out := make([]any, 0, len(params))
	for i, p := range params {
		if err, ok := p.(error); ok {
			out = append(out, slog.Any("err", err))
			continue
		}
		out = append(out, slog.Any(fmt.Sprintf("p%d", i), p))
	}
	return out
}

func (s SlogAPI) report(level slog.Level, msg, id string, params []any) {
	args := attrs(params)
	if id != "" {
		args = append([]any{slog.String("id", id)}, args...)
	}
	s.logger().Log(context.Background(), level, msg, args...)
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.report(slog.LevelError, "broken", id, params)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.report(slog.LevelWarn, "warning", id, params)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.report(slog.LevelDebug, msg, "", params)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger().Debug("count", "id", id, "n", count)
}

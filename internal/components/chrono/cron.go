package chrono

import (
	"context"
	"fmt"
	"time"

	"forarchives/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI schedules callbacks on a cron spec.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron runs jobs with robfig/cron in UTC.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts the scheduler, it runs until Stop.
func NewStandardCron(tel telemetry.API) StandardCron {
	cronner := cron.New(
		cron.WithLogger(cronLogger{tel: telemetry.OrDiscard(tel)}),
		cron.WithLocation(time.UTC),
	)
	cronner.Start()
	return StandardCron{cron: cronner}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// Stop prevents new runs, the returned context is done once running jobs
// have returned.
func (s StandardCron) Stop() context.Context {
	return s.cron.Stop()
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron: "+msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("cron", append([]any{fmt.Errorf("%s: %w", msg, err)}, l.formatParams(keysAndValues)...)...)
}

// Package app is the composition root: it turns a configuration into a
// registry, one adapter per archive and the orchestrator over them.
package app

import (
	"context"
	"errors"
	"fmt"

	"forarchives/internal/archive"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/config"
	"forarchives/internal/query"
	"forarchives/internal/scrapers/foolfuuka"
	"forarchives/internal/scrapers/protected"
	"forarchives/internal/scrapers/transport"
	"forarchives/internal/scrapers/warosu"
	"forarchives/internal/search"
	"forarchives/lib/restyutil"
)

const matcherCacheSize = 256

const report_session_refresh = "app.session-refresh"

type App struct {
	Config       config.Config
	Orchestrator search.Orchestrator
	Matchers     *query.Cache

	sessions map[string]*protected.SessionManager
	dump     restyutil.Output
	tel      telemetry.API
}

func descriptors(cfg config.Config) []archive.Descriptor {
	out := make([]archive.Descriptor, len(cfg.Archives))
	for i, a := range cfg.Archives {
		out[i] = archive.Descriptor{
			Name:     a.Name,
			BaseURL:  a.BaseURL,
			Family:   archive.Family(a.Family),
			PageSize: a.PageSize,
		}
	}
	return out
}

// Build wires every configured archive. Sessions of protected archives are
// created here but bootstrapped lazily on their first request.
func Build(cfg config.Config, tel telemetry.API, clock chrono.API) (*App, error) {
	tel = telemetry.OrDiscard(tel)
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}

	registry, err := archive.NewRegistry(descriptors(cfg))
	if err != nil {
		return nil, err
	}
	matchers, err := query.NewCache(matcherCacheSize)
	if err != nil {
		return nil, err
	}

	retry := transport.DefaultRetryPolicy(cfg.HTTP.Retries, cfg.HTTP.RetryBackoff.Std(), nil, clock)

	app := &App{
		Config:   cfg,
		Matchers: matchers,
		sessions: map[string]*protected.SessionManager{},
		tel:      tel,
	}
	if cfg.HTTP.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.HTTP.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("http dump: %w", err)
		}
		app.dump = output
	}
	adapters := make(map[string]archive.Adapter, registry.Len())
	for _, d := range registry.List() {
		adapter, err := app.buildAdapter(d, retry, clock)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("archive %s: %w", d.Name, err), app.Close())
		}
		adapters[d.Name] = adapter
	}

	app.Orchestrator = search.NewOrchestrator(
		registry,
		adapters,
		search.NewFetcher(clock, tel),
		tel,
	)
	return app, nil
}

func (a *App) transportOptions(d archive.Descriptor) transport.Options {
	timeout := a.Config.HTTP.Timeout.Std()
	if d.Family == archive.FamilyProtected {
		timeout = a.Config.HTTP.ProtectedTimeout.Std()
	}
	return transport.Options{
		BaseURL:           d.BaseURL,
		Timeout:           timeout,
		UserAgent:         a.Config.HTTP.UserAgent,
		RequestsPerSecond: a.Config.HTTP.RequestsPerSecond,
		CloudflareBypass:  !a.Config.HTTP.DisableCloudflareBypass,
		Dump:              a.dump,
	}
}

func (a *App) buildAdapter(d archive.Descriptor, retry transport.RetryPolicy, clock chrono.API) (archive.Adapter, error) {
	opts := a.transportOptions(d)

	switch d.Family {
	case archive.FamilyJSON:
		return foolfuuka.NewDirect(opts, retry, a.tel)
	case archive.FamilyHTML:
		return warosu.New(opts, d.PageSize, retry, a.tel)
	case archive.FamilyProtected:
		client, err := transport.NewClient(opts, telemetry.NewScopedAPI(d.Name, a.tel))
		if err != nil {
			return nil, err
		}
		bootstrapper := protected.NewChromeBootstrapper(protected.ChromeOptions{
			BaseURL:       d.BaseURL,
			UserAgent:     a.Config.HTTP.UserAgent,
			Headless:      a.Config.Session.Headless,
			ReadySelector: a.Config.Session.ReadySelector,
			Wait:          a.Config.Session.Wait.Std(),
			ExecPath:      a.Config.Session.ChromePath,
		}, a.tel)
		session := protected.NewSessionManager(client, bootstrapper, a.Config.Session.Cooldown.Std(), clock, a.tel)
		a.sessions[d.Name] = session
		return protected.NewAdapter(session, retry, a.tel), nil
	}
	return nil, fmt.Errorf("unknown archive family %q", d.Family)
}

// Session returns the session of a protected archive.
func (a *App) Session(name string) (*protected.SessionManager, bool) {
	session, ok := a.sessions[name]
	return session, ok
}

// ScheduleSessionRefresh bootstraps every protected session on spec. A
// session younger than its cooldown is left alone.
func (a *App) ScheduleSessionRefresh(ctx context.Context, cron chrono.CronAPI, spec string) error {
	for name, session := range a.sessions {
		err := cron.Cron(spec, func() {
			ctx, cancel := context.WithTimeout(ctx, a.Config.Session.Wait.Std()*2)
			defer cancel()
			if err := session.Bootstrap(ctx, false); err != nil {
				a.tel.ReportWarning(report_session_refresh, err, name)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule refresh of %s: %w", name, err)
		}
	}
	return nil
}

// Query returns a query carrying the configured search defaults.
func (a *App) Query() archive.Query {
	return archive.Query{
		Concurrency: a.Config.Search.Concurrency,
		Delay:       a.Config.Search.Delay.Std(),
		Limit:       a.Config.Search.Limit,
	}
}

// SubjectQuery returns a subject query carrying the configured defaults.
func (a *App) SubjectQuery() search.SubjectQuery {
	return search.SubjectQuery{
		Query:             a.Query(),
		ThreadConcurrency: a.Config.Search.ThreadConcurrency,
		ThreadDelay:       a.Config.Search.ThreadDelay.Std(),
	}
}

// Close tears down every protected session.
func (a *App) Close() error {
	var errs []error
	for _, session := range a.sessions {
		errs = append(errs, session.Close())
	}
	return errors.Join(errs...)
}

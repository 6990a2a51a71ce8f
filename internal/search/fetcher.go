// Package search drives the archive adapters: paginated fetching, fan-out
// across archives and the two stage subject search.
package search

import (
	"context"
	"sync"

	"forarchives/internal/archive"
	"forarchives/internal/components/assert"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_fetcher_page  = "fetcher.page"
	report_fetcher_round = "fetcher.round"
)

const DefaultConcurrency = 5

var tracer = otel.Tracer("forarchives/search")

// Fetcher walks the result pages of one adapter.
type Fetcher struct {
	clock chrono.API
	tel   telemetry.API
}

func NewFetcher(clock chrono.API, tel telemetry.API) Fetcher {
	assert.NotNil(clock)
	return Fetcher{
		clock: clock,
		tel:   telemetry.NewScopedAPI("search", tel),
	}
}

// Fetch requests pages in rounds of q.Concurrency concurrent requests
// starting at q.Page. Results are kept in page order. The fetch ends after a
// round in which no page returned posts, or once q.Limit posts were
// collected. q.Delay is waited between rounds. Page failures are reported and
// otherwise ignored.
func (f Fetcher) Fetch(ctx context.Context, adapter archive.Adapter, q archive.Query) []archive.Post {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	width := q.Concurrency
	if width <= 0 {
		width = DefaultConcurrency
	}
	page := max(q.Page, 1)

	var out []archive.Post
	for round := 0; ; round++ {
		if round > 0 {
			if err := f.clock.Sleep(ctx, q.Delay); err != nil {
				break
			}
		}

		pages := f.round(ctx, adapter, q, page, width)

		found := false
		for _, posts := range pages {
			if len(posts) == 0 {
				continue
			}
			found = true
			out = append(out, posts...)
		}
		f.tel.ReportDebug(report_fetcher_round, page, width, len(out))

		if !found {
			break
		}
		if q.Limit > 0 && len(out) >= q.Limit {
			out = out[:q.Limit]
			break
		}
		if ctx.Err() != nil {
			break
		}
		page += width
	}

	span.SetAttributes(attribute.Int("posts", len(out)), attribute.Int("last_page", page))
	return out
}

// round fetches pages [page, page+width) concurrently. The result slot of a
// failed page is nil.
func (f Fetcher) round(ctx context.Context, adapter archive.Adapter, q archive.Query, page, width int) [][]archive.Post {
	results := make([][]archive.Post, width)
	var wg sync.WaitGroup
	for i := range width {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts, err := adapter.Search(ctx, q, page+i)
			if err != nil {
				f.tel.ReportDebug(report_fetcher_page, err.Error(), page+i)
				return
			}
			results[i] = posts
		}()
	}
	wg.Wait()
	return results
}

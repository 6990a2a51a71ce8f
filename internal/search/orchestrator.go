package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"forarchives/internal/archive"
	"forarchives/internal/components/assert"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/query"

	"golang.org/x/sync/errgroup"
)

const report_orchestrator_search = "orchestrator.search"

var ErrNoAdapter = errors.New("no adapter for archive")

// ArchiveResult is the outcome of searching one archive.
type ArchiveResult struct {
	Board   string         `json:"board"`
	Results []archive.Post `json:"results"`
}

// Orchestrator runs searches across several archives.
type Orchestrator struct {
	registry archive.Registry
	adapters map[string]archive.Adapter
	fetcher  Fetcher
	tel      telemetry.API
}

func NewOrchestrator(
	registry archive.Registry,
	adapters map[string]archive.Adapter,
	fetcher Fetcher,
	tel telemetry.API,
) Orchestrator {
	assert.NotNil(adapters)
	return Orchestrator{
		registry: registry,
		adapters: adapters,
		fetcher:  fetcher,
		tel:      telemetry.NewScopedAPI("search", tel),
	}
}

func (o Orchestrator) Registry() archive.Registry {
	return o.registry
}

// Adapter resolves a selector to its archive and adapter.
func (o Orchestrator) Adapter(selector string) (archive.Descriptor, archive.Adapter, error) {
	d, err := o.registry.Resolve(selector)
	if err != nil {
		return archive.Descriptor{}, nil, err
	}
	adapter, ok := o.adapters[d.Name]
	if !ok {
		return archive.Descriptor{}, nil, fmt.Errorf("%w: %s", ErrNoAdapter, d.Name)
	}
	return d, adapter, nil
}

// Search runs one Fetch per selected archive concurrently and groups the
// posts by archive name. Selectors are names or registry indexes, an empty
// list selects every archive. Every selected archive is present in the
// result, possibly with no posts. Only selector resolution fails.
func (o Orchestrator) Search(ctx context.Context, selectors []string, q archive.Query) (map[string]ArchiveResult, error) {
	descriptors, err := o.registry.ResolveAll(selectors)
	if err != nil {
		return nil, err
	}

	// a repeated archive is searched once
	var unique []archive.Descriptor
	for _, d := range descriptors {
		if !slices.ContainsFunc(unique, func(u archive.Descriptor) bool { return u.Name == d.Name }) {
			unique = append(unique, d)
		}
	}

	adapters := make([]archive.Adapter, len(unique))
	for i, d := range unique {
		adapter, ok := o.adapters[d.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoAdapter, d.Name)
		}
		adapters[i] = adapter
	}

	results := make([][]archive.Post, len(unique))
	group, gctx := errgroup.WithContext(ctx)
	for i := range unique {
		group.Go(func() error {
			results[i] = o.fetcher.Fetch(gctx, adapters[i], q)
			return nil
		})
	}
	_ = group.Wait()

	board := q.BoardOrAny()
	merged := make(map[string]ArchiveResult, len(unique))
	for i, d := range unique {
		merge(merged, d.Name, board, results[i])
		o.tel.ReportCount(report_orchestrator_search+"."+d.Name, int64(len(results[i])))
	}
	return merged, nil
}

// merge concatenates posts into the entry of name, creating it if needed.
func merge(into map[string]ArchiveResult, name, board string, posts []archive.Post) {
	entry, ok := into[name]
	if !ok {
		entry = ArchiveResult{Board: board, Results: []archive.Post{}}
	}
	entry.Results = append(entry.Results, posts...)
	into[name] = entry
}

// Flatten turns grouped results into plain records tagged with their archive
// name and board, archives in name order.
func Flatten(results map[string]ArchiveResult) []map[string]any {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.SortFunc(names, strings.Compare)

	out := []map[string]any{}
	for _, name := range names {
		result := results[name]
		for _, post := range result.Results {
			record := post.Fields()
			record["source"] = name
			if _, ok := record["board"]; !ok {
				record["board"] = result.Board
			}
			out = append(out, record)
		}
	}
	return out
}

// FilterResults keeps the posts whose comment satisfies m. Archives left
// without posts stay present.
func FilterResults(results map[string]ArchiveResult, m query.Matcher) map[string]ArchiveResult {
	if m.Empty() {
		return results
	}
	out := make(map[string]ArchiveResult, len(results))
	for name, result := range results {
		kept := []archive.Post{}
		for _, post := range result.Results {
			if m.Test(post.Comment) {
				kept = append(kept, post)
			}
		}
		out[name] = ArchiveResult{Board: result.Board, Results: kept}
	}
	return out
}

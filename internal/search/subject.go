package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"forarchives/internal/archive"
	"forarchives/internal/query"

	"golang.org/x/sync/errgroup"
)

const report_subject_thread = "subject.thread"

const (
	DefaultThreadConcurrency = 5
	DefaultThreadDelay       = 5 * time.Second
)

type SubjectQuery struct {
	// Archive is the selector of the archive to search.
	Archive string
	Subject string
	// SearchText is the expression matched against every post of the
	// candidate threads.
	SearchText string
	// Query carries the board, pagination and matching flags of stage 1.
	Query archive.Query
	// InBoth also collects threads whose op text contains the subject, the
	// candidates of both searches are united.
	InBoth bool

	ThreadConcurrency int
	ThreadDelay       time.Duration
	Stemmer           query.Stemmer
}

type Summary struct {
	TotalMatches int `json:"total_matches"`
	ThreadCount  int `json:"thread_count"`
}

type ThreadMatch struct {
	ThreadID   int64    `json:"thread_id"`
	Board      string   `json:"board"`
	MatchCount int      `json:"match_count"`
	Excerpts   []string `json:"excerpts"`
}

type SubjectResult struct {
	Summary Summary
	Threads []ThreadMatch
}

// Records returns the summary followed by every thread, or nothing when no
// thread matched.
func (r SubjectResult) Records() []any {
	if len(r.Threads) == 0 {
		return []any{}
	}
	out := make([]any, 0, len(r.Threads)+1)
	out = append(out, r.Summary)
	for _, t := range r.Threads {
		out = append(out, t)
	}
	return out
}

func (r SubjectResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Records())
}

type candidate struct {
	num   int64
	board string
}

func candidateBoard(p archive.Post, q archive.Query) string {
	if board := p.BoardName(); board != archive.AnyBoard {
		return board
	}
	return strings.Trim(strings.ToLower(q.BoardOrAny()), "/")
}

// addCandidates appends the threads of posts not seen yet, in order.
func addCandidates(out []candidate, seen map[int64]struct{}, posts []archive.Post, q archive.Query) []candidate {
	for _, p := range posts {
		num := p.ThreadNum
		if num == 0 {
			num = p.Num
		}
		if _, dup := seen[num]; dup {
			continue
		}
		seen[num] = struct{}{}
		out = append(out, candidate{num: num, board: candidateBoard(p, q)})
	}
	return out
}

// SearchInSubject shortlists threads by subject then counts the posts of
// each thread that match SearchText. Threads without a match and threads
// that could not be fetched are left out.
func (o Orchestrator) SearchInSubject(ctx context.Context, sq SubjectQuery) (SubjectResult, error) {
	ctx, span := tracer.Start(ctx, "SearchInSubject")
	defer span.End()

	_, adapter, err := o.Adapter(sq.Archive)
	if err != nil {
		return SubjectResult{}, err
	}

	bySubject := sq.Query
	bySubject.Subject = sq.Subject
	bySubject.Text = ""

	stage1 := []archive.Query{bySubject}
	if sq.InBoth {
		byOpText := sq.Query
		byOpText.Subject = ""
		byOpText.Text = sq.Subject
		byOpText.Type = "op"
		stage1 = append(stage1, byOpText)
	}

	// one fetch at a time so the backend never sees more than
	// Query.Concurrency requests
	var candidates []candidate
	seen := map[int64]struct{}{}
	for _, q := range stage1 {
		posts := o.fetcher.Fetch(ctx, adapter, q)
		candidates = addCandidates(candidates, seen, posts, sq.Query)
	}
	if len(candidates) == 0 {
		return SubjectResult{}, nil
	}

	matcher := query.Compile(sq.SearchText, query.Options{
		CaseSensitive: sq.Query.CaseSensitive,
		WholeWord:     sq.Query.WholeWord,
		Stemmer:       sq.Stemmer,
	})
	matches := o.matchThreads(ctx, adapter, candidates, matcher, sq)

	var result SubjectResult
	for _, m := range matches {
		if m == nil {
			continue
		}
		result.Threads = append(result.Threads, *m)
		result.Summary.TotalMatches += m.MatchCount
		result.Summary.ThreadCount++
	}
	return result, nil
}

// matchThreads fetches the candidates with bounded concurrency, waiting
// ThreadDelay before each request. The slot of a thread that failed or did
// not match is nil.
func (o Orchestrator) matchThreads(
	ctx context.Context,
	adapter archive.Adapter,
	candidates []candidate,
	matcher query.Matcher,
	sq SubjectQuery,
) []*ThreadMatch {
	limit := sq.ThreadConcurrency
	if limit <= 0 {
		limit = DefaultThreadConcurrency
	}

	out := make([]*ThreadMatch, len(candidates))
	var group errgroup.Group
	group.SetLimit(limit)
	for i, c := range candidates {
		group.Go(func() error {
			if err := o.fetcher.clock.Sleep(ctx, sq.ThreadDelay); err != nil {
				return nil
			}
			thread, err := adapter.Thread(ctx, c.board, c.num)
			if err != nil {
				o.tel.ReportWarning(report_subject_thread, err, c.board, c.num)
				return nil
			}

			excerpts := matcher.Filter(RenderThread(thread))
			if len(excerpts) == 0 {
				return nil
			}
			out[i] = &ThreadMatch{
				ThreadID:   c.num,
				Board:      c.board,
				MatchCount: len(excerpts),
				Excerpts:   excerpts,
			}
			return nil
		})
	}
	_ = group.Wait()
	return out
}

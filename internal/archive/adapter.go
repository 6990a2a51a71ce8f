package archive

import (
	"context"
	"time"
)

// Query is a single search request, built per call.
type Query struct {
	Board    string
	Text     string
	Subject  string
	Username string
	Filename string
	// DateFrom and DateTo are YYYY-MM-DD, empty means unbounded.
	DateFrom string
	DateTo   string
	// Type restricts the kind of post, e.g. "op".
	Type string

	// Page is the first page to fetch, 0 means 1.
	Page int
	// Limit caps the number of collected posts, 0 means no limit.
	Limit int
	// Concurrency is the number of pages fetched per round.
	Concurrency int
	// Delay is the politeness delay between rounds.
	Delay time.Duration

	CaseSensitive bool
	WholeWord     bool
}

// BoardOrAny returns the query board or AnyBoard.
func (q Query) BoardOrAny() string {
	if q.Board == "" {
		return AnyBoard
	}
	return q.Board
}

// Adapter normalizes one backend family into posts.
//
// A non-nil error from Search means the page is unavailable and must not be
// taken as the end of the results. An empty slice with a nil error means
// there are no more results.
type Adapter interface {
	Search(ctx context.Context, q Query, page int) ([]Post, error)
	Thread(ctx context.Context, board string, num int64) (Thread, error)
}

// PostLookup is implemented by adapters that can fetch a single post.
type PostLookup interface {
	Post(ctx context.Context, board string, num int64) (Post, error)
}

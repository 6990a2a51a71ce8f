// Package warosu implements the adapter for archives that only offer an html
// search page.
package warosu

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"forarchives/internal/archive"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/scrapers/transport"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_adapter_search = "adapter.search"
	report_adapter_thread = "adapter.thread"
)

const DefaultPageSize = 24

var tracer = otel.Tracer("forarchives/scrapers/warosu")

var _ archive.Adapter = Adapter{}

type Adapter struct {
	http     *resty.Client
	base     *url.URL
	retry    transport.RetryPolicy
	pageSize int
	tel      telemetry.API
}

func New(opts transport.Options, pageSize int, retry transport.RetryPolicy, tel telemetry.API) (Adapter, error) {
	tel = telemetry.NewScopedAPI("warosu", tel)

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return Adapter{}, err
	}
	client, err := transport.NewClient(opts, tel)
	if err != nil {
		return Adapter{}, err
	}
	if retry.Classify == nil {
		retry.Classify = transport.NewClassifier(false, false)
	}
	if retry.Clock == nil {
		retry.Clock = chrono.NewStandardImpl()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return Adapter{
		http:     client,
		base:     base,
		retry:    retry,
		pageSize: pageSize,
		tel:      tel,
	}, nil
}

func normalizeBoard(board string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(board)), "/", "")
}

func (a Adapter) searchParams(q archive.Query, page int) url.Values {
	params := url.Values{}
	params.Set("task", "search")
	params.Set("ghost", "false")
	params.Set("search_text", q.Text)
	set := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	set("search_subject", q.Subject)
	set("search_username", q.Username)
	set("search_filename", q.Filename)
	set("search_datefrom", q.DateFrom)
	set("search_dateto", q.DateTo)
	if page > 1 {
		params.Set("offset", strconv.Itoa((page-1)*a.pageSize))
	}
	return params
}

func (a Adapter) get(ctx context.Context, path string, params url.Values) (*resty.Response, error) {
	return a.retry.Do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return a.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			Get(path)
	}, nil)
}

// Search scrapes one page of the board search. The html search has no
// cross-board mode so a board is required.
func (a Adapter) Search(ctx context.Context, q archive.Query, page int) ([]archive.Post, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	board := normalizeBoard(q.Board)
	span.SetAttributes(attribute.String("board", board), attribute.Int("page", page))
	if board == "" || board == archive.AnyBoard {
		return nil, fmt.Errorf("%w: a board is required", transport.ErrProtocol)
	}

	res, err := a.get(ctx, "/"+url.PathEscape(board), a.searchParams(q, page))
	if err != nil {
		a.tel.ReportWarning(report_adapter_search, err, board, page)
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}

	posts, skipped, err := parsePosts(res.Body(), a.base, board)
	if err != nil {
		a.tel.ReportWarning(report_adapter_search, err, board, page)
		return nil, fmt.Errorf("search page %d: %w: %w", page, transport.ErrMalformed, err)
	}
	if skipped > 0 {
		a.tel.ReportDebug(report_adapter_search, "skipped blocks without a post number", skipped)
	}
	span.SetAttributes(attribute.Int("posts", len(posts)))
	return posts, nil
}

func (a Adapter) Thread(ctx context.Context, board string, num int64) (archive.Thread, error) {
	ctx, span := tracer.Start(ctx, "Thread")
	defer span.End()

	board = normalizeBoard(board)
	span.SetAttributes(attribute.String("board", board), attribute.Int64("num", num))

	path := fmt.Sprintf("/%s/thread/%d", url.PathEscape(board), num)
	res, err := a.get(ctx, path, nil)
	if err != nil {
		a.tel.ReportWarning(report_adapter_thread, err, board, num)
		return archive.Thread{}, fmt.Errorf("thread %d: %w", num, err)
	}

	posts, _, err := parsePosts(res.Body(), a.base, board)
	if err != nil {
		return archive.Thread{}, fmt.Errorf("thread %d: %w: %w", num, transport.ErrMalformed, err)
	}
	if len(posts) == 0 {
		return archive.Thread{}, fmt.Errorf("thread %d: %w: no posts on page", num, transport.ErrMalformed)
	}

	opIndex := 0
	for i, p := range posts {
		if p.Num == num {
			opIndex = i
			break
		}
	}
	thread := archive.Thread{OP: posts[opIndex]}
	thread.OP.OP = true
	for i, p := range posts {
		if i == opIndex {
			continue
		}
		p.ThreadNum = thread.OP.Num
		p.OP = false
		thread.Replies = append(thread.Replies, p)
	}
	return thread, nil
}

// Package foolfuuka implements the adapter for archives exposing the
// FoolFuuka json api (/_/api/chan/...).
package foolfuuka

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"forarchives/internal/archive"
	"forarchives/internal/components/assert"
	"forarchives/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_adapter_search = "adapter.search"
	report_adapter_thread = "adapter.thread"
	report_adapter_post   = "adapter.post"
)

var tracer = otel.Tracer("forarchives/scrapers/foolfuuka")

var (
	_ archive.Adapter    = Adapter{}
	_ archive.PostLookup = Adapter{}
)

type Adapter struct {
	requester Requester
	tel       telemetry.API
}

func New(requester Requester, tel telemetry.API) Adapter {
	assert.NotNil(requester)
	return Adapter{
		requester: requester,
		tel:       telemetry.OrDiscard(tel),
	}
}

func normalizeBoard(board string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(board)), "/")
}

func searchParams(q archive.Query, page int) url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	set("boards", normalizeBoard(q.Board))
	params.Set("page", strconv.Itoa(page))
	set("text", q.Text)
	set("subject", q.Subject)
	set("username", q.Username)
	set("filename", q.Filename)
	set("start", q.DateFrom)
	set("end", q.DateTo)
	set("type", q.Type)
	return params
}

func (a Adapter) Search(ctx context.Context, q archive.Query, page int) ([]archive.Post, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("board", q.Board),
		attribute.Int("page", page),
	)

	res, err := a.requester.Get(ctx, "search", searchParams(q, page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.tel.ReportWarning(report_adapter_search, err, q.Board, page)
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}

	body := res.Body()
	if err := checkEnvelope(body); err != nil {
		a.tel.ReportDebug(report_adapter_search, err.Error(), q.Board, page)
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}

	posts, skipped, err := decodeSearch(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.tel.ReportWarning(report_adapter_search, err, q.Board, page)
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	if skipped > 0 {
		a.tel.ReportWarning(report_adapter_search, fmt.Errorf("skipped %d undecodable posts", skipped), page)
	}
	span.SetAttributes(attribute.Int("posts", len(posts)))
	return posts, nil
}

func (a Adapter) Thread(ctx context.Context, board string, num int64) (archive.Thread, error) {
	ctx, span := tracer.Start(ctx, "Thread")
	defer span.End()
	span.SetAttributes(attribute.String("board", board), attribute.Int64("num", num))

	params := url.Values{}
	params.Set("board", normalizeBoard(board))
	params.Set("num", strconv.FormatInt(num, 10))

	res, err := a.requester.Get(ctx, "thread", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.tel.ReportWarning(report_adapter_thread, err, board, num)
		return archive.Thread{}, fmt.Errorf("thread %d: %w", num, err)
	}
	body := res.Body()
	if err := checkEnvelope(body); err != nil {
		a.tel.ReportWarning(report_adapter_thread, err, board, num)
		return archive.Thread{}, fmt.Errorf("thread %d: %w", num, err)
	}

	thread, skipped, err := decodeThread(body, num)
	if err != nil {
		a.tel.ReportWarning(report_adapter_thread, err, board, num)
		return archive.Thread{}, fmt.Errorf("thread %d: %w", num, err)
	}
	if skipped > 0 {
		a.tel.ReportWarning(report_adapter_thread, fmt.Errorf("skipped %d undecodable replies", skipped), num)
	}
	return thread, nil
}

func (a Adapter) Post(ctx context.Context, board string, num int64) (archive.Post, error) {
	params := url.Values{}
	params.Set("board", normalizeBoard(board))
	params.Set("num", strconv.FormatInt(num, 10))

	res, err := a.requester.Get(ctx, "post", params)
	if err != nil {
		a.tel.ReportWarning(report_adapter_post, err, board, num)
		return archive.Post{}, fmt.Errorf("post %d: %w", num, err)
	}
	body := res.Body()
	if err := checkEnvelope(body); err != nil {
		return archive.Post{}, fmt.Errorf("post %d: %w", num, err)
	}
	post, err := archive.DecodePost(body)
	if err != nil {
		a.tel.ReportWarning(report_adapter_post, err, board, num)
		return archive.Post{}, fmt.Errorf("post %d: %w", num, malformed(err))
	}
	return post, nil
}

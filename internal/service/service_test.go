package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"forarchives/internal/archive"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/query"
	"forarchives/internal/search"

	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	pages   map[int][]archive.Post
	threads map[int64]archive.Thread
	queries chan archive.Query
}

func (s stubAdapter) Search(ctx context.Context, q archive.Query, page int) ([]archive.Post, error) {
	if s.queries != nil && page == 1 {
		s.queries <- q
	}
	return s.pages[page], nil
}

func (s stubAdapter) Thread(ctx context.Context, board string, num int64) (archive.Thread, error) {
	thread, ok := s.threads[num]
	if !ok {
		return archive.Thread{}, errors.New("thread unavailable")
	}
	return thread, nil
}

type lookupAdapter struct {
	stubAdapter
}

func (lookupAdapter) Post(ctx context.Context, board string, num int64) (archive.Post, error) {
	return archive.Post{Num: num, Comment: "looked up " + board}, nil
}

type fixedRandom struct{}

func (fixedRandom) RequestID() (string, error) {
	return "req-1", nil
}

func newTestServer(t *testing.T, adapters map[string]archive.Adapter) *httptest.Server {
	t.Helper()
	registry, err := archive.NewRegistry([]archive.Descriptor{
		{Name: "alpha", BaseURL: "http://alpha.test", Family: archive.FamilyJSON},
		{Name: "beta", BaseURL: "http://beta.test", Family: archive.FamilyHTML},
	})
	require.NoError(t, err)

	fetcher := search.NewFetcher(chrono.NewFake(time.Unix(0, 0)), telemetry.Discard{})
	orchestrator := search.NewOrchestrator(registry, adapters, fetcher, telemetry.Discard{})
	matchers, err := query.NewCache(16)
	require.NoError(t, err)

	svc := New(
		orchestrator,
		search.SubjectQuery{Query: archive.Query{Concurrency: 2}, ThreadConcurrency: 2},
		matchers,
		telemetry.Discard{},
		WithRandomAPI(fixedRandom{}),
	)
	server := httptest.NewServer(svc.Router([]string{"*"}))
	t.Cleanup(server.Close)
	return server
}

func defaultAdapters() map[string]archive.Adapter {
	return map[string]archive.Adapter{
		"alpha": lookupAdapter{stubAdapter{
			pages: map[int][]archive.Post{1: {
				{Num: 1, Comment: "hello world"},
				{Num: 2, Comment: "goodbye"},
			}},
			threads: map[int64]archive.Thread{
				10: {OP: archive.Post{Num: 10, Title: "subject"}, Replies: []archive.Post{{Num: 11, Comment: "reply"}}},
			},
		}},
		"beta": stubAdapter{},
	}
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func TestSearch(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, body := post(t, server.URL+"/api/search", `{"archives": ["alpha", "1"], "board": "g", "text": "hello"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "req-1", res.Header.Get(RequestIDHeader))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 2)
	require.Equal(t, "alpha", records[0]["source"])
	require.Equal(t, "g", records[0]["board"])
	require.EqualValues(t, 1, records[0]["num"])
}

func TestSearchFilter(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, body := post(t, server.URL+"/api/search", `{"archives": ["alpha"], "text": "x", "filter": "-goodbye"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	require.EqualValues(t, 1, records[0]["num"])
}

func TestSearchForwardsQuery(t *testing.T) {
	queries := make(chan archive.Query, 1)
	adapters := defaultAdapters()
	adapters["beta"] = stubAdapter{queries: queries}
	server := newTestServer(t, adapters)

	res, _ := post(t, server.URL+"/api/search", `{
		"archives": ["beta"],
		"board": "ck",
		"text": "t",
		"username": "anon",
		"date_from": "2020-01-02",
		"type": "op",
		"limit": 7,
		"delay": "1s"
	}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	q := <-queries
	require.Equal(t, "ck", q.Board)
	require.Equal(t, "anon", q.Username)
	require.Equal(t, "2020-01-02", q.DateFrom)
	require.Equal(t, "op", q.Type)
	require.Equal(t, 7, q.Limit)
	require.Equal(t, 2, q.Concurrency)
	require.Equal(t, time.Second, q.Delay)
}

func TestSearchErrors(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "unknown archive", body: `{"archives": ["alpah"]}`, status: http.StatusNotFound},
		{name: "invalid json", body: `{"archives": `, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"boards": "g"}`, status: http.StatusBadRequest},
		{name: "invalid type", body: `{"type": "image"}`, status: http.StatusBadRequest},
		{name: "invalid date", body: `{"date_to": "yesterday"}`, status: http.StatusBadRequest},
		{name: "concurrency too high", body: `{"concurrency": 100}`, status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		res, body := post(t, server.URL+"/api/search", tc.body)
		require.Equal(t, tc.status, res.StatusCode, tc.name)

		var errBody errorBody
		require.NoError(t, json.Unmarshal(body, &errBody), tc.name)
		require.NotEmpty(t, errBody.Error, tc.name)
	}
}

func TestSearchSubject(t *testing.T) {
	adapters := map[string]archive.Adapter{
		"alpha": stubAdapter{
			pages: map[int][]archive.Post{1: {{Num: 10, ThreadNum: 10}}},
			threads: map[int64]archive.Thread{
				10: {
					OP:      archive.Post{Num: 10, Title: "pasta thread", Comment: "pasta"},
					Replies: []archive.Post{{Num: 11, Comment: "more pasta"}, {Num: 12, Comment: "rice"}},
				},
			},
		},
	}
	server := newTestServer(t, adapters)

	res, body := post(t, server.URL+"/api/search/subject", `{
		"archive": "alpha",
		"subject": "pasta",
		"search_text": "pasta",
		"thread_delay": 0
	}`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	require.JSONEq(t, `[
		{"total_matches": 2, "thread_count": 1},
		{
			"thread_id": 10,
			"board": "_",
			"match_count": 2,
			"excerpts": ["pasta thread\n10\npasta", "11\nmore pasta"]
		}
	]`, string(body))
}

func TestSearchSubjectValidation(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, _ := post(t, server.URL+"/api/search/subject", `{"archive": "alpha", "search_text": "x"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = post(t, server.URL+"/api/search/subject", `{"subject": "s", "search_text": "x"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = post(t, server.URL+"/api/search/subject", `{"archive": "alpha", "subject": "s", "search_text": "x", "stemmer": "klingon"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestArchives(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, body := get(t, server.URL+"/api/archives")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `[
		{"index": 0, "name": "alpha", "base_url": "http://alpha.test", "family": "json-api"},
		{"index": 1, "name": "beta", "base_url": "http://beta.test", "family": "html-scrape"}
	]`, string(body))
}

func TestThreadAndPost(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, body := get(t, server.URL+"/api/archives/alpha/thread/g/10")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var thread map[string]any
	require.NoError(t, json.Unmarshal(body, &thread))
	require.Contains(t, thread, "op")
	require.Len(t, thread["posts"], 1)

	res, _ = get(t, server.URL+"/api/archives/alpha/thread/g/99")
	require.Equal(t, http.StatusBadGateway, res.StatusCode)

	res, _ = get(t, server.URL+"/api/archives/alpha/thread/g/abc")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = get(t, server.URL+"/api/archives/nope/thread/g/1")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = get(t, server.URL+"/api/archives/0/post/g/5")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"num": 5, "op": false, "comment": "looked up g"}`, string(body))

	res, _ = get(t, server.URL+"/api/archives/beta/post/g/5")
	require.Equal(t, http.StatusNotImplemented, res.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	res, body := get(t, server.URL+"/healthz")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status": "ok", "archives": 2}`, string(body))

	res, body = get(t, server.URL+"/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "forarchives_http_requests_total")
}

func TestRequestIDPassthrough(t *testing.T) {
	server := newTestServer(t, defaultAdapters())

	req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "client-id")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "client-id", res.Header.Get(RequestIDHeader))
}

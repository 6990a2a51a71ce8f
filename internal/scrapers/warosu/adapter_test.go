package warosu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"forarchives/internal/archive"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/scrapers/transport"

	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<div class="content">
  <table><tr><td class="reply" id="p501">
    <span class="filetitle">a subject</span>
    <span class="postername">Anonymous</span>
    <span class="posttime" title="1600000000">Sun Sep 13 12:26:40 2020</span>
    <a class="js" href="/g/thread/500#p501">No.501</a>
    <a href="/g/thread/500">View</a>
    <a href="/data/g/img/1.jpg"><img class="thumb" src="/data/g/thumb/1s.jpg" alt="cat.jpg"></a>
    <blockquote><p>first line<br>second line</p></blockquote>
  </td></tr></table>
  <div class="post-wrapper">
    <a class="js">No.600</a>
    <time title="1600000500"></time>
    <blockquote>an op post</blockquote>
  </div>
  <div class="reply">
    <span class="posttime" title="1600000600"></span>
    <blockquote>block without a number</blockquote>
  </div>
</div>
</body></html>`

const threadPage = `<html><body>
<div class="op">
  <a class="js" href="/g/thread/500#p500">No.500</a>
  <span class="filetitle">thread subject</span>
  <blockquote>op comment</blockquote>
</div>
<div class="reply"><a class="js">No.501</a><blockquote>reply one</blockquote></div>
<div class="reply"><a class="js">No.502</a><blockquote>reply two</blockquote></div>
</body></html>`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (Adapter, *[]url.URL) {
	t.Helper()
	var requests []url.URL
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, *r.URL)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	adapter, err := New(
		transport.Options{BaseURL: server.URL, Timeout: 5 * time.Second},
		10,
		transport.DefaultRetryPolicy(0, time.Second, nil, chrono.NewFake(time.Unix(0, 0))),
		telemetry.Discard{},
	)
	require.NoError(t, err)
	return adapter, &requests
}

func TestSearch(t *testing.T) {
	adapter, requests := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchPage))
	})

	posts, err := adapter.Search(context.Background(), archive.Query{
		Board:    "/G/",
		Text:     "cat",
		Subject:  "a subject",
		DateFrom: "2020-01-01",
	}, 3)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	first := posts[0]
	require.Equal(t, int64(501), first.Num)
	require.Equal(t, int64(500), first.ThreadNum)
	require.False(t, first.OP)
	require.Equal(t, int64(1600000000), first.Timestamp)
	require.Equal(t, "first line\nsecond line", first.Comment)
	require.Equal(t, "a subject", first.Title)
	require.Equal(t, "Anonymous", first.Name)
	require.Equal(t, "g", first.BoardName())
	require.NotNil(t, first.Media)
	require.Equal(t, "cat.jpg", first.Media.Filename)
	require.Contains(t, first.Media.Link, "/data/g/img/1.jpg")
	require.Contains(t, first.Media.ThumbLink, "/data/g/thumb/1s.jpg")

	second := posts[1]
	require.Equal(t, int64(600), second.Num)
	require.Equal(t, int64(600), second.ThreadNum)
	require.True(t, second.OP)
	require.Equal(t, int64(1600000500), second.Timestamp)
	require.Nil(t, second.Media)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	require.Equal(t, "/g", req.Path)
	query := req.Query()
	require.Equal(t, "search", query.Get("task"))
	require.Equal(t, "false", query.Get("ghost"))
	require.Equal(t, "cat", query.Get("search_text"))
	require.Equal(t, "a subject", query.Get("search_subject"))
	require.Equal(t, "2020-01-01", query.Get("search_datefrom"))
	require.Equal(t, "20", query.Get("offset"))
}

func TestSearchFirstPageHasNoOffset(t *testing.T) {
	adapter, requests := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>nothing here</body></html>`))
	})

	posts, err := adapter.Search(context.Background(), archive.Query{Board: "g", Text: "x"}, 1)
	require.NoError(t, err)
	require.Empty(t, posts)
	require.False(t, (*requests)[0].Query().Has("offset"))
}

func TestSearchRequiresBoard(t *testing.T) {
	adapter, requests := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := adapter.Search(context.Background(), archive.Query{Text: "x"}, 1)
	require.ErrorIs(t, err, transport.ErrProtocol)
	require.Empty(t, *requests)
}

func TestSearchServerError(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := adapter.Search(context.Background(), archive.Query{Board: "g"}, 1)
	require.ErrorIs(t, err, transport.ErrProtocol)
}

func TestThread(t *testing.T) {
	adapter, requests := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(threadPage))
	})

	thread, err := adapter.Thread(context.Background(), "g", 500)
	require.NoError(t, err)
	require.Equal(t, "/g/thread/500", (*requests)[0].Path)

	require.Equal(t, int64(500), thread.Num())
	require.True(t, thread.OP.OP)
	require.Equal(t, "thread subject", thread.OP.Title)
	require.Len(t, thread.Replies, 2)
	require.Equal(t, int64(501), thread.Replies[0].Num)
	require.Equal(t, int64(500), thread.Replies[0].ThreadNum)
	require.Equal(t, "reply two", thread.Replies[1].Comment)
}

func TestThreadEmptyPage(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html></html>`))
	})

	_, err := adapter.Thread(context.Background(), "g", 1)
	require.ErrorIs(t, err, transport.ErrMalformed)
}

func TestNewWithoutTelemetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchPage))
	}))
	defer server.Close()

	adapter, err := New(transport.Options{BaseURL: server.URL}, 0, transport.RetryPolicy{}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultPageSize, adapter.pageSize)

	posts, err := adapter.Search(context.Background(), archive.Query{Board: "g", Text: "x"}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, posts)
}

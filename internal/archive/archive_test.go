package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/fetcher"
	"github.com/sells-group/admissions-ingest/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RequestsPerSecond: 1000, Burst: 10, Timeout: 5 * time.Second})
	c, err := New(f, Options{BaseURL: srv.URL + "/reddit/search/submission", Subreddit: "collegeresults", PageSize: 25})
	require.NoError(t, err)
	return c
}

func TestFetchPage(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reddit/search/submission", r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[
			{"id":"a1","title":"t","selftext":"body","link_flair_text":"Results","created_utc":1710000000,"permalink":"/r/x/a1","score":5},
			{"id":"a2","selftext":"b","created_utc":"1710000300.0"}
		]}`))
	}))
	defer srv.Close()

	after := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	posts, err := newTestClient(t, srv).FetchPage(context.Background(), after, 0)
	require.NoError(t, err)

	assert.Equal(t, "collegeresults", got.Get("subreddit"))
	assert.Equal(t, "25", got.Get("limit"))
	assert.Equal(t, "asc", got.Get("sort"))
	assert.Equal(t, "2024-03-01T17:00:00Z", got.Get("after"))

	require.Len(t, posts, 2)
	assert.Equal(t, "a1", posts[0].ID)
	assert.Equal(t, "Results", posts[0].Flair)
	assert.Equal(t, "/r/x/a1", posts[0].Permalink)
	assert.Equal(t, 5, posts[0].Score)
	assert.Equal(t, int64(1710000300), posts[1].CreatedAt.Time().Unix())
}

func TestFetchPage_FirstCallOmitsAfter(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	posts, err := newTestClient(t, srv).FetchPage(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.False(t, got.Has("after"))
	assert.Equal(t, "10", got.Get("limit"))
}

func TestFetchPage_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchPage(context.Background(), time.Time{}, 0)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "archive: fetch page")
}

func TestFetchPage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchPage(context.Background(), time.Time{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive: decode page")
}

func TestFetchPage_MalformedPostKeepsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"good","selftext":"body","created_utc":1710000000,"score":5},
			{"id":"bad","selftext":"body","created_utc":1710000300,"score":"12"},
			{"id":"lost","selftext":"body","created_utc":"soon","score":1}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	posts, err := c.FetchPage(context.Background(), time.Time{}, 0)
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, "good", posts[0].ID)
	assert.Equal(t, "body", posts[0].Body)

	// The mistyped post keeps only what the cursor needs.
	assert.Equal(t, "bad", posts[1].ID)
	assert.Empty(t, posts[1].Body)
	assert.Equal(t, int64(1710000300), posts[1].CreatedAt.Time().Unix())

	assert.Equal(t, int64(2), c.Malformed())
}

func TestNew_Validation(t *testing.T) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})

	_, err := New(f, Options{Subreddit: "x"})
	assert.Error(t, err)

	_, err = New(f, Options{BaseURL: "https://api.example.com"})
	assert.Error(t, err)

	c, err := New(f, Options{BaseURL: "https://api.example.com/search?fields=all", Subreddit: "x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, c.PageSize())
	assert.Contains(t, c.PageURL(time.Time{}, 5), "fields=all")
}

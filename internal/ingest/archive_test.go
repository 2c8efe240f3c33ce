package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/admissions-ingest/internal/archive"
	"github.com/sells-group/admissions-ingest/internal/fetcher"
)

// archiveServer serves the given posts in ascending order, honouring after.
func archiveServer(t *testing.T, posts []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var after int64
		if s := r.URL.Query().Get("after"); s != "" {
			ts, err := time.Parse(time.RFC3339, s)
			require.NoError(t, err)
			after = ts.Unix()
		}
		page := []map[string]any{}
		for _, p := range posts {
			if p["created_utc"].(int64) > after {
				page = append(page, p)
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": page}))
	}))
}

func TestRun_MalformedPostDoesNotStallCrawl(t *testing.T) {
	h := newHarness(t)
	good := base.Add(time.Minute).Unix()
	bad := base.Add(2 * time.Minute).Unix()

	srv := archiveServer(t, []map[string]any{
		{"id": "p1", "selftext": resultsBody, "created_utc": good, "score": 3},
		{"id": "p2", "selftext": resultsBody, "created_utc": bad, "score": "12"},
	})
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RequestsPerSecond: 1000, Burst: 10, Timeout: 5 * time.Second})
	client, err := archive.New(f, archive.Options{BaseURL: srv.URL, Subreddit: "collegeresults", PageSize: 10})
	require.NoError(t, err)

	rep, err := h.engine(client, nil, testOptions()).Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, StopExhausted, rep.Stop)
	assert.Equal(t, 0, rep.FetchErrors)
	assert.Equal(t, 2, rep.PostsFetched)
	assert.Equal(t, 1, rep.Unparsable)
	assert.Equal(t, 2, rep.OutcomesInserted)
	assert.Equal(t, bad, rep.Cursor.Unix())
	assert.Equal(t, int64(1), client.Malformed())

	stored, ok, err := h.cur.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bad, stored.Unix())
}

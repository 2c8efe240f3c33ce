// Package archive reads pages of posts from the external post archive API.
package archive

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/fetcher"
	"github.com/sells-group/admissions-ingest/internal/model"
)

// DefaultPageSize is used when Options.PageSize is not set.
const DefaultPageSize = 100

// Options configures a Client.
type Options struct {
	BaseURL   string
	Subreddit string
	PageSize  int
}

// page is the archive's response envelope. Posts are decoded one at a time
// so a single malformed post cannot fail the page.
type page struct {
	Data []json.RawMessage `json:"data"`
}

// postStub is what is salvaged from a post whose full decode failed.
type postStub struct {
	ID        string             `json:"id"`
	CreatedAt model.EpochSeconds `json:"created_utc"`
}

// Client fetches ascending pages of posts created strictly after a cursor.
type Client struct {
	f         fetcher.Fetcher
	opts      Options
	log       *zap.Logger
	malformed atomic.Int64
}

// New creates a Client that issues requests through f.
func New(f fetcher.Fetcher, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("archive: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, eris.Wrap(err, "archive: parse base url")
	}
	if opts.Subreddit == "" {
		return nil, eris.New("archive: subreddit is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Client{
		f:    f,
		opts: opts,
		log:  zap.L().With(zap.String("component", "archive")),
	}, nil
}

// PageSize returns the number of posts requested per page.
func (c *Client) PageSize() int { return c.opts.PageSize }

// PageURL builds the request URL for the page after cursor. A zero cursor
// omits the after parameter.
func (c *Client) PageURL(after time.Time, limit int) string {
	u, _ := url.Parse(c.opts.BaseURL)
	q := u.Query()
	q.Set("subreddit", c.opts.Subreddit)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "asc")
	if !after.IsZero() {
		q.Set("after", after.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Malformed reports how many posts could not be fully decoded so far.
func (c *Client) Malformed() int64 { return c.malformed.Load() }

// FetchPage returns up to limit posts created after the cursor, oldest
// first. limit <= 0 uses the configured page size. A non-2xx status or an
// unreadable envelope is a fetch-level error. A post that fails to decode is
// returned with only its id and timestamp, so it parses as empty and the
// cursor still moves past it; one without a readable timestamp is dropped.
func (c *Client) FetchPage(ctx context.Context, after time.Time, limit int) ([]model.RawPost, error) {
	if limit <= 0 {
		limit = c.opts.PageSize
	}
	u := c.PageURL(after, limit)

	body, err := c.f.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "archive: fetch page")
	}
	defer body.Close() //nolint:errcheck

	p, err := fetcher.DecodeJSON[page](body)
	if err != nil {
		return nil, eris.Wrap(err, "archive: decode page")
	}

	posts := make([]model.RawPost, 0, len(p.Data))
	for i, raw := range p.Data {
		var post model.RawPost
		err := json.Unmarshal(raw, &post)
		if err == nil {
			posts = append(posts, post)
			continue
		}

		c.malformed.Add(1)
		var stub postStub
		if serr := json.Unmarshal(raw, &stub); serr != nil || stub.CreatedAt == 0 {
			c.log.Warn("archive: dropping malformed post",
				zap.Int("index", i),
				zap.Time("after", after),
				zap.Error(err),
			)
			continue
		}
		c.log.Warn("archive: malformed post, keeping id and timestamp only",
			zap.String("post_id", stub.ID),
			zap.Error(err),
		)
		posts = append(posts, model.RawPost{ID: stub.ID, CreatedAt: stub.CreatedAt})
	}

	c.log.Debug("page fetched",
		zap.Time("after", after),
		zap.Int("posts", len(posts)),
	)
	return posts, nil
}

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/admissions-ingest/internal/config"
)

func TestCrawlOptions(t *testing.T) {
	c := &config.Config{}
	c.Archive.PageSize = 50
	c.Archive.PageDelayMs = 1500
	c.Archive.ErrorBackoffSecs = 10
	c.Archive.MaxConsecutiveFailures = 4
	c.Ingest.MaxPosts = 200
	c.Ingest.TopUnresolved = 15
	c.Ingest.WriteMaxAttempts = 5
	c.Ingest.WriteInitialBackoffMs = 100
	c.Ingest.WriteMaxBackoffMs = 1000

	opts := crawlOptions(c)
	assert.Equal(t, 50, opts.PageSize)
	assert.Equal(t, 200, opts.MaxPosts)
	assert.Equal(t, 1500*time.Millisecond, opts.PageDelay)
	assert.Equal(t, 10*time.Second, opts.ErrorBackoff)
	assert.Equal(t, 4, opts.MaxConsecutiveFailures)
	assert.Equal(t, 15, opts.TopUnresolved)
	assert.Equal(t, 5, opts.WriteRetry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, opts.WriteRetry.InitialBackoff)
	assert.Equal(t, time.Second, opts.WriteRetry.MaxBackoff)
}

func TestApplyCrawlFlags(t *testing.T) {
	c := &config.Config{}
	c.Ingest.MaxPosts = 10
	c.Metrics.Addr = ":9100"

	// Unchanged flags leave config alone.
	applyCrawlFlags(crawlCmd, c)
	assert.Equal(t, 10, c.Ingest.MaxPosts)
	assert.Equal(t, ":9100", c.Metrics.Addr)

	require.NoError(t, crawlCmd.Flags().Set("max-posts", "3"))
	t.Cleanup(func() {
		_ = crawlCmd.Flags().Set("max-posts", "0")
		crawlCmd.Flags().Lookup("max-posts").Changed = false
	})
	applyCrawlFlags(crawlCmd, c)
	assert.Equal(t, 3, c.Ingest.MaxPosts)
	assert.Equal(t, ":9100", c.Metrics.Addr)
}

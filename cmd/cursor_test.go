package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCursor(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fallback := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	formatCursor(&buf, ts, true, fallback)
	assert.Equal(t, "2024-03-01T12:00:00Z (1709294400)\n", buf.String())

	buf.Reset()
	formatCursor(&buf, time.Time{}, false, fallback)
	assert.Contains(t, buf.String(), "starts after 2019-01-01T00:00:00Z")

	buf.Reset()
	formatCursor(&buf, time.Time{}, false, time.Time{})
	assert.Contains(t, buf.String(), "oldest post")
}

package fetcher

import (
	"context"
	"io"
)

// Fetcher retrieves a remote resource.
type Fetcher interface {
	// Get issues a GET for url and returns the response body. Non-2xx
	// responses are errors; transient ones are resilience.TransientError.
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// Package cursor tracks the crawl position: the created-at timestamp of the
// last fully processed post.
package cursor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Cursor loads and persists the crawl position.
type Cursor interface {
	// Load returns the stored position and whether one exists.
	Load(ctx context.Context) (time.Time, bool, error)
	// Save records ts unless the stored position is already later.
	Save(ctx context.Context, ts time.Time) error
	// Reset overwrites the stored position, including moving it backwards.
	Reset(ctx context.Context, ts time.Time) error
}

// StoreBackend is the part of store.Store a StoreCursor needs.
type StoreBackend interface {
	GetCursor(ctx context.Context, name string) (time.Time, bool, error)
	AdvanceCursor(ctx context.Context, name string, ts time.Time) error
	SetCursor(ctx context.Context, name string, ts time.Time) error
}

// StoreCursor keeps the position in the relational store's ingest_cursor
// table under a fixed name.
type StoreCursor struct {
	b    StoreBackend
	name string
}

// NewStoreCursor returns a Cursor backed by b.
func NewStoreCursor(b StoreBackend, name string) *StoreCursor {
	return &StoreCursor{b: b, name: name}
}

func (c *StoreCursor) Load(ctx context.Context) (time.Time, bool, error) {
	ts, ok, err := c.b.GetCursor(ctx, c.name)
	return ts, ok, eris.Wrap(err, "cursor: load")
}

func (c *StoreCursor) Save(ctx context.Context, ts time.Time) error {
	return eris.Wrap(c.b.AdvanceCursor(ctx, c.name, ts), "cursor: save")
}

func (c *StoreCursor) Reset(ctx context.Context, ts time.Time) error {
	return eris.Wrap(c.b.SetCursor(ctx, c.name, ts), "cursor: reset")
}

// Resume picks the starting position for a crawl: an explicit override
// wins, then the stored position, then fallback.
func Resume(ctx context.Context, c Cursor, override, fallback time.Time) (time.Time, error) {
	if !override.IsZero() {
		return override.UTC(), nil
	}
	ts, ok, err := c.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return ts, nil
	}
	return fallback.UTC(), nil
}

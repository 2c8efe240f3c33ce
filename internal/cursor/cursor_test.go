package cursor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/admissions-ingest/internal/store"
)

// fakeRedis is an in-memory RedisClient. Script calls apply the advance
// rule directly.
type fakeRedis struct {
	mu   sync.Mutex
	vals map[string]string
	err  error
}

func newFakeRedis() *fakeRedis { return &fakeRedis{vals: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.vals[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) advance(keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	next, _ := strconv.ParseInt(fmt.Sprint(args[0]), 10, 64)
	if cur, ok := f.vals[keys[0]]; ok {
		if c, _ := strconv.ParseInt(cur, 10, 64); next <= c {
			return redis.NewCmdResult(int64(0), nil)
		}
	}
	f.vals[keys[0]] = strconv.FormatInt(next, 10)
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.advance(keys, args...)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.advance(keys, args...)
}

func (f *fakeRedis) EvalRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.advance(keys, args...)
}

func (f *fakeRedis) EvalShaRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.advance(keys, args...)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func newSQLiteCursor(t *testing.T) Cursor {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cursor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewStoreCursor(st, store.DefaultCursorName)
}

func cursorSuite(t *testing.T, newCursor func(t *testing.T) Cursor) {
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-24 * time.Hour)

	t.Run("EmptyLoad", func(t *testing.T) {
		_, ok, err := newCursor(t).Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SaveIsMonotonic", func(t *testing.T) {
		c := newCursor(t)
		require.NoError(t, c.Save(ctx, t1))
		require.NoError(t, c.Save(ctx, t0))

		got, ok, err := c.Load(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, got.Equal(t1), "got %v", got)
	})

	t.Run("ResetMovesBackwards", func(t *testing.T) {
		c := newCursor(t)
		require.NoError(t, c.Save(ctx, t1))
		require.NoError(t, c.Reset(ctx, t0))

		got, _, err := c.Load(ctx)
		require.NoError(t, err)
		assert.True(t, got.Equal(t0), "got %v", got)
	})
}

func TestStoreCursor(t *testing.T) {
	cursorSuite(t, newSQLiteCursor)
}

func TestRedisCursor(t *testing.T) {
	cursorSuite(t, func(t *testing.T) Cursor { return NewRedis(newFakeRedis(), "admit:cursor") })
}

func TestRedisCursor_Errors(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("connection refused")
	c := NewRedis(f, "admit:cursor")

	_, _, err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor: redis get admit:cursor")

	assert.Error(t, c.Save(context.Background(), time.Now()))
	assert.Error(t, c.Reset(context.Background(), time.Now()))
}

func TestRedisCursor_CorruptValue(t *testing.T) {
	f := newFakeRedis()
	f.vals["admit:cursor"] = "yesterday"
	_, _, err := NewRedis(f, "admit:cursor").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis value")
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	fallback := time.Date(2019, 8, 1, 0, 0, 0, 0, time.UTC)
	stored := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	override := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	c := NewRedis(newFakeRedis(), "k")
	got, err := Resume(ctx, c, time.Time{}, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	require.NoError(t, c.Save(ctx, stored))
	got, err = Resume(ctx, c, time.Time{}, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(stored))

	got, err = Resume(ctx, c, override, fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(override))
}

package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/config"
	"github.com/sells-group/admissions-ingest/internal/cursor"
	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/resolve"
	"github.com/sells-group/admissions-ingest/internal/store"
)

// openStore opens the configured store and applies pending migrations.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{MaxConns: c.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// openCursor returns the configured cursor backend and a close func.
func openCursor(c *config.Config, st store.Store) (cursor.Cursor, func(), error) {
	switch c.Cursor.Backend {
	case "", "store":
		name := c.Cursor.Name
		if name == "" {
			name = store.DefaultCursorName
		}
		return cursor.NewStoreCursor(st, name), func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(c.Cursor.RedisURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "parse cursor.redis_url")
		}
		client := redis.NewClient(opts)
		closeFn := func() {
			if err := client.Close(); err != nil {
				zap.L().Warn("close redis client", zap.Error(err))
			}
		}
		return cursor.NewRedis(client, c.Cursor.RedisKey), closeFn, nil
	default:
		return nil, nil, eris.Errorf("unsupported cursor backend: %s", c.Cursor.Backend)
	}
}

// newResolver builds a resolver from schools using the configured policy and
// optional abbreviations file.
func newResolver(c *config.Config, schools []model.CanonicalSchool) (*resolve.Resolver, error) {
	opts := resolve.Options{AbbreviationsFirst: c.Resolve.AbbreviationsFirst}
	if c.Resolve.AliasesFile != "" {
		data, err := os.ReadFile(c.Resolve.AliasesFile)
		if err != nil {
			return nil, eris.Wrap(err, "read resolve.aliases_file")
		}
		abbrev, err := resolve.LoadAbbreviations(data)
		if err != nil {
			return nil, err
		}
		opts.Abbreviations = abbrev
	}
	return resolve.New(schools, opts)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/db"
	"github.com/sells-group/admissions-ingest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	closeFn   func()
	insertSQL string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, pool.Close), nil
}

func newPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	// Column list and key are package constants, so the builder cannot fail.
	insertSQL, _ := db.InsertIgnoreSQL("outcomes", outcomeColumns, outcomeKey)
	return &PostgresStore{pool: pool, closeFn: closeFn, insertSQL: insertSQL}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies pending embedded migrations under an advisory lock,
// recording each in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: release migration lock failed", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	files, err := migrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if applied[m.name] {
			continue
		}
		log.Info("applying migration", zap.String("file", m.name))
		if _, err := s.pool.Exec(ctx, m.sql); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", m.name)
		}
		if _, err := s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", m.name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", m.name)
		}
	}
	return nil
}

func (s *PostgresStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListSchools(ctx context.Context) ([]model.CanonicalSchool, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, aliases FROM schools ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schools")
	}
	defer rows.Close()

	var schools []model.CanonicalSchool
	for rows.Next() {
		var sc model.CanonicalSchool
		var aliases []byte
		if err := rows.Scan(&sc.ID, &sc.Name, &aliases); err != nil {
			return nil, eris.Wrap(err, "postgres: scan school")
		}
		if len(aliases) > 0 {
			if err := json.Unmarshal(aliases, &sc.Aliases); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal aliases for school %d", sc.ID)
			}
		}
		schools = append(schools, sc)
	}
	return schools, eris.Wrap(rows.Err(), "postgres: list schools iterate")
}

// ImportSchools upserts schools by id through a COPY-backed bulk merge.
func (s *PostgresStore) ImportSchools(ctx context.Context, schools []model.CanonicalSchool) (int64, error) {
	rows := make([][]any, 0, len(schools))
	for _, sc := range schools {
		aliases, err := marshalAliases(sc.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal aliases for school %d", sc.ID)
		}
		rows = append(rows, []any{sc.ID, sc.Name, aliases})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "schools",
		Columns:      []string{"id", "name", "aliases"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import schools")
}

func (s *PostgresStore) InsertOutcome(ctx context.Context, rec model.OutcomeRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, s.insertSQL, outcomeValues(rec)...)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert outcome %s/%d", rec.SourcePostID, rec.SchoolID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountOutcomes(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count outcomes")
}

func (s *PostgresStore) GetCursor(ctx context.Context, name string) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_created_at FROM ingest_cursor WHERE name = $1`, name,
	).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, eris.Wrapf(err, "postgres: get cursor %s", name)
	}
	return ts.UTC(), true, nil
}

func (s *PostgresStore) AdvanceCursor(ctx context.Context, name string, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_cursor (name, last_created_at, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET
		   last_created_at = GREATEST(ingest_cursor.last_created_at, EXCLUDED.last_created_at),
		   updated_at = now()`,
		name, ts.UTC(),
	)
	return eris.Wrapf(err, "postgres: advance cursor %s", name)
}

func (s *PostgresStore) SetCursor(ctx context.Context, name string, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_cursor (name, last_created_at, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET last_created_at = EXCLUDED.last_created_at, updated_at = now()`,
		name, ts.UTC(),
	)
	return eris.Wrapf(err, "postgres: set cursor %s", name)
}

func (s *PostgresStore) StartRun(ctx context.Context, cursorStart time.Time) (*model.IngestRun, error) {
	run := &model.IngestRun{
		ID:          uuid.New().String(),
		Status:      model.IngestRunRunning,
		StartedAt:   time.Now().UTC(),
		CursorStart: cursorStart.UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, status, started_at, cursor_start) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Status), run.StartedAt, run.CursorStart,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert ingest run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.IngestRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, completed_at = $2, cursor_end = $3,
		   outcomes_inserted = $4, error = $5, stats = $6
		 WHERE id = $7`,
		string(run.Status), now, run.CursorEnd, run.Inserted, nullString(run.Error), stats, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish ingest run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingest run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, cursor_start, cursor_end, outcomes_inserted, error, stats
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var errMsg *string
		var stats []byte
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.CursorStart, &r.CursorEnd, &r.Inserted, &errMsg, &stats); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		if err := unmarshalStats(stats, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func marshalAliases(aliases []string) (string, error) {
	if aliases == nil {
		aliases = []string{}
	}
	b, err := json.Marshal(aliases)
	return string(b), err
}

func unmarshalStats(b []byte, r *model.IngestRun) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &r.Stats)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/admissions-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	insertSQL string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps the per-connection pragmas in force and
	// serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	insertSQL := "INSERT INTO outcomes (" + strings.Join(outcomeColumns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(outcomeColumns)), ", ") +
		") ON CONFLICT (" + strings.Join(outcomeKey, ", ") + ") DO NOTHING"

	return &SQLiteStore{db: db, insertSQL: insertSQL}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate applies pending embedded migrations, recording each in
// schema_migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return eris.Wrap(err, "sqlite: query applied migrations")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close() //nolint:errcheck
			return eris.Wrap(err, "sqlite: scan migration row")
		}
		applied[name] = true
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: iterate migrations")
	}

	files, err := migrations("sqlite")
	if err != nil {
		return err
	}
	for _, m := range files {
		if applied[m.name] {
			continue
		}
		zap.L().Debug("applying migration", zap.String("component", "store.migrate"), zap.String("file", m.name))
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", m.name)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename) VALUES (?)", m.name,
		); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", m.name)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListSchools(ctx context.Context) ([]model.CanonicalSchool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, aliases FROM schools ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schools")
	}
	defer rows.Close() //nolint:errcheck

	var schools []model.CanonicalSchool
	for rows.Next() {
		var sc model.CanonicalSchool
		var aliases string
		if err := rows.Scan(&sc.ID, &sc.Name, &aliases); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan school")
		}
		if aliases != "" {
			if err := json.Unmarshal([]byte(aliases), &sc.Aliases); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal aliases for school %d", sc.ID)
			}
		}
		schools = append(schools, sc)
	}
	return schools, eris.Wrap(rows.Err(), "sqlite: list schools iterate")
}

func (s *SQLiteStore) ImportSchools(ctx context.Context, schools []model.CanonicalSchool) (int64, error) {
	if len(schools) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import schools: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, sc := range schools {
		aliases, err := marshalAliases(sc.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal aliases for school %d", sc.ID)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO schools (id, name, aliases) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, aliases = excluded.aliases`,
			sc.ID, sc.Name, aliases,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import school %d", sc.ID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import schools: commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertOutcome(ctx context.Context, rec model.OutcomeRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.insertSQL, outcomeValues(rec)...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert outcome %s/%d", rec.SourcePostID, rec.SchoolID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) CountOutcomes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count outcomes")
}

func (s *SQLiteStore) GetCursor(ctx context.Context, name string) (time.Time, bool, error) {
	var secs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_created_at FROM ingest_cursor WHERE name = ?`, name,
	).Scan(&secs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, eris.Wrapf(err, "sqlite: get cursor %s", name)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func (s *SQLiteStore) AdvanceCursor(ctx context.Context, name string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_cursor (name, last_created_at, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT (name) DO UPDATE SET
		   last_created_at = MAX(last_created_at, excluded.last_created_at),
		   updated_at = datetime('now')`,
		name, ts.Unix(),
	)
	return eris.Wrapf(err, "sqlite: advance cursor %s", name)
}

func (s *SQLiteStore) SetCursor(ctx context.Context, name string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_cursor (name, last_created_at, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT (name) DO UPDATE SET last_created_at = excluded.last_created_at, updated_at = datetime('now')`,
		name, ts.Unix(),
	)
	return eris.Wrapf(err, "sqlite: set cursor %s", name)
}

func (s *SQLiteStore) StartRun(ctx context.Context, cursorStart time.Time) (*model.IngestRun, error) {
	run := &model.IngestRun{
		ID:          uuid.New().String(),
		Status:      model.IngestRunRunning,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		CursorStart: cursorStart.UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, status, started_at, cursor_start) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt.Unix(), run.CursorStart.Unix(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert ingest run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.IngestRun) error {
	now := time.Now().UTC().Truncate(time.Second)
	run.CompletedAt = &now

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}
	var cursorEnd any
	if run.CursorEnd != nil {
		cursorEnd = run.CursorEnd.Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, cursor_end = ?,
		   outcomes_inserted = ?, error = ?, stats = ?
		 WHERE id = ?`,
		string(run.Status), now.Unix(), cursorEnd, run.Inserted, nullString(run.Error), string(stats), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish ingest run %s", run.ID)
	}
	return checkRowsAffected(res, "ingest run", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, cursor_start, cursor_end, outcomes_inserted, error, stats
		 FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.IngestRun
	for rows.Next() {
		var (
			r                    model.IngestRun
			status               string
			started, cursorStart int64
			completed, cursorEnd sql.NullInt64
			errMsg, stats        sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &started, &completed,
			&cursorStart, &cursorEnd, &r.Inserted, &errMsg, &stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.IngestRunStatus(status)
		r.StartedAt = time.Unix(started, 0).UTC()
		r.CursorStart = time.Unix(cursorStart, 0).UTC()
		r.CompletedAt = unixPtr(completed)
		r.CursorEnd = unixPtr(cursorEnd)
		r.Error = errMsg.String
		if err := unmarshalStats([]byte(stats.String), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

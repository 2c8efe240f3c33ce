package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schoolsUpsert = UpsertConfig{
	Table:        "schools",
	Columns:      []string{"id", "name", "aliases"},
	ConflictKeys: []string{"id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, schoolsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "schools", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "schools", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_schools"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_schools"}, []string{"id", "name", "aliases"}).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO UPDATE SET "name" = EXCLUDED."name", "aliases" = EXCLUDED."aliases"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{int64(1), "Harvard University", "[]"}, {int64(2), "Yale University", "[]"}}
	n, err := BulkUpsert(context.Background(), mock, schoolsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_schools"}, []string{"id", "name", "aliases"}).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, schoolsUpsert, [][]any{{int64(1), "x", "[]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into temp table for schools")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIgnoreSQL(t *testing.T) {
	sql, err := InsertIgnoreSQL("outcomes", []string{"source_post_id", "school_id", "decision"}, []string{"source_post_id", "school_id"})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "outcomes" ("source_post_id", "school_id", "decision") VALUES ($1, $2, $3) ON CONFLICT ("source_post_id", "school_id") DO NOTHING`,
		sql)

	_, err = InsertIgnoreSQL("outcomes", nil, []string{"id"})
	assert.Error(t, err)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"schools", `"schools"`},
		{"public.outcomes", `"public"."outcomes"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestUpdateColumns(t *testing.T) {
	assert.Equal(t, []string{"name", "aliases"}, updateColumns(schoolsUpsert))

	explicit := schoolsUpsert
	explicit.UpdateCols = []string{"name"}
	assert.Equal(t, []string{"name"}, updateColumns(explicit))
}

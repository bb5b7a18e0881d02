package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "observations",
		Columns:      []string{"a"},
		ConflictKeys: []string{"a"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	rows := [][]any{{1}}

	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"a"}}, rows)
	assert.Contains(t, err.Error(), "no columns")

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "t", Columns: []string{"a"}}, rows)
	assert.Contains(t, err.Error(), "no conflict keys")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fuels"}, []string{"type", "rank"}).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"Wind", 1}, {"Gas", 2}}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "fuels",
		Columns:      []string{"type", "rank"},
		ConflictKeys: []string{"type"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_fuels"}, []string{"type"}).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	rows := [][]any{{"Wind"}}
	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "fuels",
		Columns:      []string{"type"},
		ConflictKeys: []string{"type"},
	}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

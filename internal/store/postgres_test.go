package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Set(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO blobs").
		WithArgs(KeyExtractionEvents, []byte("{}")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.Set(context.Background(), KeyExtractionEvents, []byte("{}"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT value FROM blobs").
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("payload")))

	got, err := st.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT value FROM blobs").
		WithArgs("gone").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	got, err := st.Get(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("DELETE FROM blobs").
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, st.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

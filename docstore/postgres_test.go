package docstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return &Store{db: db, d: postgresDialect}, mock
}

func TestPostgresCreate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.insert).
		WithArgs(Articles, sqlmock.AnyArg(), `{"title":"Panen Raya"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.Create(context.Background(), Articles, Fields{"title": "Panen Raya"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateWriteFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.insert).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.Create(context.Background(), Articles, Fields{"title": "x"})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateUsesJSONBMerge(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.update).
		WithArgs(`{"title":"Baru"}`, Articles, "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(context.Background(), Articles, "a1", Fields{"title": "Baru"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.update).
		WithArgs(`{"title":"Baru"}`, Articles, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), Articles, "missing", Fields{"title": "Baru"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateWriteFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.update).
		WillReturnError(errors.New("deadlock detected"))

	err := s.Update(context.Background(), Articles, "a1", Fields{"title": "x"})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresList(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("g1", []byte(`{"title":"Sawah"}`)).
		AddRow("g2", []byte(`{"title":"Kali"}`))
	mock.ExpectQuery(postgresDialect.list).WithArgs(Gallery).WillReturnRows(rows)

	docs, err := s.List(context.Background(), Gallery)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "g1", docs[0].ID)
	assert.JSONEq(t, `{"title":"Kali"}`, string(docs[1].Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(postgresDialect.get).
		WithArgs(Businesses, "b9").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), Businesses, "b9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresFindByCredentials(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(postgresDialect.findCreds).
		WithArgs(Accounts, "admin", "rahasia").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("u1", []byte(`{"display_name":"Admin","username":"admin"}`)))

	doc, err := s.FindByCredentials(context.Background(), "admin", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID)

	mock.ExpectQuery(postgresDialect.findCreds).
		WithArgs(Accounts, "admin", "salah").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}))

	_, err = s.FindByCredentials(context.Background(), "admin", "salah")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(postgresDialect.delete).
		WithArgs(Gallery, "g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.Delete(context.Background(), Gallery, "g1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

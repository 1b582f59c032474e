package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"imgbed/internal/model"
	"imgbed/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uploadCols = []string{"identifier", "url", "hash", "ip", "upload_time"}

func newRecord(now time.Time) *model.UploadRecord {
	return &model.UploadRecord{
		Identifier: "id-1",
		URL:        "https://img.example.com/up/2024/05/01/abc123.png",
		Hash:       "deadbeef",
		IP:         "1.2.3.4",
		UploadTime: now,
	}
}

func TestUploadPostgres_CountByIPSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads WHERE ip = \\$1 AND upload_time >= \\$2").
		WithArgs("1.2.3.4", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByIPSince(context.Background(), "1.2.3.4", since)

	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPostgres_FindByHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	ctx := context.Background()
	rec := newRecord(time.Now().UTC())

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE hash = \\$1").
			WithArgs(rec.Hash).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime))

		got, err := repo.FindByHash(ctx, rec.Hash)

		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE hash = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(uploadCols))

		got, err := repo.FindByHash(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPostgres_FindByIdentifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	ctx := context.Background()
	rec := newRecord(time.Now().UTC())

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE identifier = \\$1").
			WithArgs(rec.Identifier).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime))

		got, err := repo.FindByIdentifier(ctx, rec.Identifier)

		require.NoError(t, err)
		assert.Equal(t, rec.URL, got.URL)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE identifier = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByIdentifier(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})
}

func TestUploadPostgres_CreateWithinQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	quota := repository.Quota{Since: now.Add(-time.Hour), Limit: 5}

	t.Run("inserted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads").
			WithArgs(rec.IP, quota.Since).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO uploads").
			WithArgs(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime))
		mock.ExpectCommit()

		got, created, err := NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, rec.Identifier, got.Identifier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("quota exhausted rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads").
			WithArgs(rec.IP, quota.Since).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
		mock.ExpectRollback()

		got, created, err := NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		assert.ErrorIs(t, err, repository.ErrQuotaExceeded)
		assert.False(t, created)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hash conflict returns existing record", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)
		existing := newRecord(now.Add(-time.Minute))
		existing.Identifier = "first-id"
		existing.URL = "https://img.example.com/up/2024/05/01/zzz999.png"

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads").
			WithArgs(rec.IP, quota.Since).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("INSERT INTO uploads (.+) ON CONFLICT \\(hash\\) DO NOTHING").
			WithArgs(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime).
			WillReturnRows(sqlmock.NewRows(uploadCols))
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE hash = \\$1").
			WithArgs(rec.Hash).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(existing.Identifier, existing.URL, existing.Hash, existing.IP, existing.UploadTime))
		mock.ExpectCommit()

		got, created, err := NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing.URL, got.URL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("url already owned by another record", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads").
			WithArgs(rec.IP, quota.Since).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO uploads").
			WithArgs(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uploads_url_key"})
		mock.ExpectRollback()

		got, created, err := NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		assert.ErrorIs(t, err, repository.ErrKeyTaken)
		assert.False(t, created)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other unique violations pass through", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads").
			WithArgs(rec.IP, quota.Since).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO uploads").
			WithArgs(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uploads_pkey"})
		mock.ExpectRollback()

		_, _, err = NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		assert.NotErrorIs(t, err, repository.ErrKeyTaken)
		var pgErr *pgconn.PgError
		assert.ErrorAs(t, err, &pgErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		rec := newRecord(now)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(rec.IP).
			WillReturnError(errors.New("conn reset"))
		mock.ExpectRollback()

		_, _, err = NewUploadPostgres(db).CreateWithinQuota(ctx, rec, quota)

		assert.EqualError(t, err, "conn reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUploadPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	ctx := context.Background()
	rec := newRecord(time.Now().UTC())

	t.Run("unfiltered", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads$").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM uploads ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime))

		res, err := repo.List(ctx, repository.Filter{}, repository.PageQuery{Limit: 10, Offset: 0})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("filtered by ip", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads WHERE ip = \\$1 OR url = \\$1 OR identifier = \\$1").
			WithArgs("1.2.3.4").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE (.+) LIMIT \\$2 OFFSET \\$3").
			WithArgs("1.2.3.4", 5, 5).
			WillReturnRows(sqlmock.NewRows(uploadCols).
				AddRow(rec.Identifier, rec.URL, rec.Hash, rec.IP, rec.UploadTime))

		res, err := repo.List(ctx, repository.Filter{Query: "1.2.3.4"}, repository.PageQuery{Limit: 5, Offset: 5})

		require.NoError(t, err)
		assert.Equal(t, rec.IP, res.Items[0].IP)
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("db fail"))

		res, err := repo.List(ctx, repository.Filter{}, repository.PageQuery{Limit: 10})

		assert.Error(t, err)
		assert.Nil(t, res)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)

	mock.ExpectExec("DELETE FROM uploads WHERE identifier = \\$1").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(context.Background(), "id-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

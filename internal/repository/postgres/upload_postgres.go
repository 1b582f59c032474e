package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"imgbed/internal/dbx"
	"imgbed/internal/model"
	"imgbed/internal/repository"
)

// UploadPostgres is a PostgreSQL implementation of repository.UploadRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type UploadPostgres struct {
	db *sql.DB
}

// NewUploadPostgres creates a new UploadPostgres repository.
func NewUploadPostgres(db *sql.DB) *UploadPostgres {
	return &UploadPostgres{db: db}
}

var _ repository.UploadRepository = (*UploadPostgres)(nil)

const uploadColumns = `identifier, url, hash, ip, upload_time`

const (
	uniqueViolation = "23505"
	urlConstraint   = "uploads_url_key"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*model.UploadRecord, error) {
	var u model.UploadRecord
	if err := row.Scan(
		&u.Identifier,
		&u.URL,
		&u.Hash,
		&u.IP,
		&u.UploadTime,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// CountByIPSince returns the size of the client's rate window.
func (r *UploadPostgres) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	return countByIPSince(ctx, r.db, ip, since)
}

func countByIPSince(ctx context.Context, db dbx.DBTX, ip string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM uploads WHERE ip = $1 AND upload_time >= $2`
	var n int
	if err := db.QueryRowContext(ctx, q, ip, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FindByHash fetches the record holding content with the given fingerprint.
func (r *UploadPostgres) FindByHash(ctx context.Context, hash string) (*model.UploadRecord, error) {
	return findByHash(ctx, r.db, hash)
}

func findByHash(ctx context.Context, db dbx.DBTX, hash string) (*model.UploadRecord, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads WHERE hash = $1`
	return scanUpload(db.QueryRowContext(ctx, q, hash))
}

// FindByIdentifier fetches a single record by its identifier.
func (r *UploadPostgres) FindByIdentifier(ctx context.Context, identifier string) (*model.UploadRecord, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads WHERE identifier = $1`
	return scanUpload(r.db.QueryRowContext(ctx, q, identifier))
}

// CreateWithinQuota serializes writers of the same ip with a transaction-scoped
// advisory lock, so the count and the insert observe each other.
func (r *UploadPostgres) CreateWithinQuota(ctx context.Context, rec *model.UploadRecord, q repository.Quota) (*model.UploadRecord, bool, error) {
	var (
		stored  *model.UploadRecord
		created bool
	)

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.IP); err != nil {
			return err
		}

		n, err := countByIPSince(ctx, tx, rec.IP, q.Since)
		if err != nil {
			return err
		}
		if q.Limit > 0 && n >= q.Limit {
			return repository.ErrQuotaExceeded
		}

		const ins = `
			INSERT INTO uploads (identifier, url, hash, ip, upload_time)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (hash) DO NOTHING
			RETURNING ` + uploadColumns
		out, err := scanUpload(tx.QueryRowContext(ctx, ins,
			rec.Identifier,
			rec.URL,
			rec.Hash,
			rec.IP,
			rec.UploadTime,
		))
		if err == nil {
			stored, created = out, true
			return nil
		}
		if isUniqueViolation(err, urlConstraint) {
			return repository.ErrKeyTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// Another request stored the same content first.
		stored, err = findByHash(ctx, tx, rec.Hash)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Delete removes a record by identifier. It does not return an error if the row does not exist.
func (r *UploadPostgres) Delete(ctx context.Context, identifier string) error {
	const q = `DELETE FROM uploads WHERE identifier = $1`
	_, err := r.db.ExecContext(ctx, q, identifier)
	return err
}

// List returns records using LIMIT/OFFSET pagination and a total count.
func (r *UploadPostgres) List(ctx context.Context, f repository.Filter, pq repository.PageQuery) (*repository.PageResult[model.UploadRecord], error) {
	where := ""
	args := []any{}
	if f.Query != "" {
		where = ` WHERE ip = $1 OR url = $1 OR identifier = $1`
		args = append(args, f.Query)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + uploadColumns + ` FROM uploads` + where + ` ORDER BY upload_time DESC, identifier DESC`
	if f.Query != "" {
		qList += ` LIMIT $2 OFFSET $3`
	} else {
		qList += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, pq.Limit, pq.Offset)

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.UploadRecord, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.UploadRecord]{
		Items: items,
		Total: total,
	}, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"imgbed/internal/model"
)

// ErrQuotaExceeded is returned by CreateWithinQuota when the client already used up its rate window.
var ErrQuotaExceeded = errors.New("upload quota exceeded")

// ErrKeyTaken is returned by CreateWithinQuota when another record already owns rec.URL.
var ErrKeyTaken = errors.New("storage key already recorded")

// UploadRepository defines data access for upload records using SQL queries only.
// No business logic here, only persistence operations.
// Point lookups return sql.ErrNoRows when nothing matches.
type UploadRepository interface {
	// CountByIPSince counts records owned by ip with upload_time >= since.
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error)

	// FindByHash returns the record storing content with the given fingerprint.
	FindByHash(ctx context.Context, hash string) (*model.UploadRecord, error)

	// FindByIdentifier returns the record addressed by an opaque identifier.
	FindByIdentifier(ctx context.Context, identifier string) (*model.UploadRecord, error)

	// CreateWithinQuota re-counts the owner's rate window and inserts rec in one
	// transaction, only when the count is still below q.Limit. If a record with the
	// same hash already exists, that record is returned with created == false.
	CreateWithinQuota(ctx context.Context, rec *model.UploadRecord, q Quota) (stored *model.UploadRecord, created bool, err error)

	// Delete removes a record by identifier. It returns nil if the row did not exist.
	Delete(ctx context.Context, identifier string) error

	// List returns a page of records, newest first, optionally filtered.
	List(ctx context.Context, f Filter, pq PageQuery) (*PageResult[model.UploadRecord], error)
}

// Quota is the rate window a conditional insert is checked against.
type Quota struct {
	Since time.Time
	Limit int
}

// Filter narrows List to records whose ip, url or identifier equals Query.
// An empty Query matches everything.
type Filter struct {
	Query string
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

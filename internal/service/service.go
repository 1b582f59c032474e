package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imgbed/internal/cache"
	"imgbed/internal/metrics"
	"imgbed/internal/model"
	"imgbed/internal/purge"
	"imgbed/internal/ratelimit"
	"imgbed/internal/repository"
	"imgbed/internal/storage"
)

var (
	ErrQuotaExceeded      = errors.New("upload limit reached")
	ErrPayloadTooLarge    = errors.New("file size exceeds limit")
	ErrNotFound           = errors.New("not found")
	ErrIdentifierRequired = errors.New("identifier is required")
)

const (
	defaultContentType  = "application/octet-stream"
	fallbackContentType = "image/png"
	immutableCacheCtl   = "public, max-age=31536000, s-maxage=31536000, immutable"
	cacheFillTimeout    = 30 * time.Second
	maxKeyAttempts      = 5
)

// UploadListResult is the service-level DTO for paginated upload records.
type UploadListResult struct {
	Items []model.UploadRecord `json:"data"`
	Total int                  `json:"total"`
}

// ImageService defines the ingestion, retrieval and deletion use cases.
type ImageService interface {
	// Upload processes files in order on behalf of clientIP.
	// Non-image files are skipped without a result entry. On error no results are returned,
	// but records committed for earlier files in the batch are kept.
	Upload(ctx context.Context, files []model.FileInput, clientIP string, now time.Time) ([]model.UploadResult, error)

	// Fetch serves the object stored under path, through the edge cache.
	// A missing object yields the fallback object with status 404, or ErrNotFound.
	Fetch(ctx context.Context, path string) (*model.ObjectResponse, error)

	// Delete removes the object addressed by identifier and invalidates cached copies.
	Delete(ctx context.Context, identifier string) error

	// List returns upload records newest first, filtered by ip, url or identifier.
	List(ctx context.Context, query string, limit, offset int) (*UploadListResult, error)
}

// Options carries the limits and URL settings the pipelines need.
type Options struct {
	MaxFileSize    int64
	PublicScheme   string
	PublicDomain   string
	NotFoundKey    string
	CacheMaxObject int64
}

type imageService struct {
	store   storage.Storage
	repo    repository.UploadRepository
	limiter *ratelimit.Limiter
	cache   cache.Cache
	purger  purge.Purger
	metrics *metrics.Pipeline
	log     zerolog.Logger
	opts    Options

	// fills tracks detached cache writes.
	fills sync.WaitGroup
	// guard lets Delete invalidate fills that read an object before it was removed.
	guard fillGuard
}

// NewImageService constructs the service. cache and purger may be nil.
func NewImageService(
	store storage.Storage,
	repo repository.UploadRepository,
	limiter *ratelimit.Limiter,
	c cache.Cache,
	purger purge.Purger,
	m *metrics.Pipeline,
	log zerolog.Logger,
	opts Options,
) ImageService {
	if opts.PublicScheme == "" {
		opts.PublicScheme = "https"
	}
	if purger == nil {
		purger = purge.Noop{}
	}
	return &imageService{
		store:   store,
		repo:    repo,
		limiter: limiter,
		cache:   c,
		purger:  purger,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// Drain waits for background cache fills started by svc, or until ctx is done.
func Drain(ctx context.Context, svc ImageService) error {
	s, ok := svc.(*imageService)
	if !ok {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.fills.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns paginated records without exposing repository types.
func (s *imageService) List(ctx context.Context, query string, limit, offset int) (*UploadListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.Filter{Query: query}, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &UploadListResult{Items: res.Items, Total: res.Total}, nil
}

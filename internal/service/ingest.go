package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"imgbed/internal/hasher"
	"imgbed/internal/metrics"
	"imgbed/internal/model"
	"imgbed/internal/repository"
	"imgbed/internal/storage"
)

func (s *imageService) Upload(ctx context.Context, files []model.FileInput, clientIP string, now time.Time) ([]model.UploadResult, error) {
	results := make([]model.UploadResult, 0, len(files))

	for i := range files {
		res, skipped, err := s.ingestOne(ctx, &files[i], clientIP, now)
		if err != nil {
			return nil, err
		}
		if skipped {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *imageService) ingestOne(ctx context.Context, f *model.FileInput, clientIP string, now time.Time) (model.UploadResult, bool, error) {
	win, err := s.limiter.Admit(ctx, clientIP, now)
	if err != nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, err
	}
	if win.Exceeded() {
		s.metrics.Upload(metrics.OutcomeRejected)
		s.log.Info().Str("ip", clientIP).Int("count", win.Count).Int("limit", win.Limit).Msg("upload quota exceeded")
		return model.UploadResult{}, false, ErrQuotaExceeded
	}

	if s.opts.MaxFileSize > 0 && f.Size > s.opts.MaxFileSize {
		s.metrics.Upload(metrics.OutcomeRejected)
		return model.UploadResult{}, false, ErrPayloadTooLarge
	}

	if !isImage(f.ContentType) {
		s.metrics.Upload(metrics.OutcomeSkipped)
		return model.UploadResult{}, true, nil
	}

	if f.Content == nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, fmt.Errorf("file %q has no content", f.Filename)
	}
	sum, err := hasher.Sum(f.Content)
	if err != nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, err
	}
	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, fmt.Errorf("rewind content: %w", err)
	}

	existing, err := s.repo.FindByHash(ctx, sum)
	switch {
	case err == nil:
		s.metrics.Upload(metrics.OutcomeDeduplicated)
		return model.UploadResult{URL: existing.URL, Type: f.ContentType}, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, fmt.Errorf("lookup hash: %w", err)
	}

	key, err := s.reserveKey(ctx, now, extension(f.Filename, f.ContentType))
	if err != nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, err
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	if _, err := s.store.Put(ctx, key, f.Content, storage.PutObjectOptions{
		Size:        f.Size,
		ContentType: contentType,
	}); err != nil {
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, fmt.Errorf("upload to storage: %w", err)
	}

	rec := &model.UploadRecord{
		Identifier: uuid.NewString(),
		URL:        s.publicURL(key),
		Hash:       sum,
		IP:         clientIP,
		UploadTime: now.UTC(),
	}
	stored, created, err := s.repo.CreateWithinQuota(ctx, rec, repository.Quota{
		Since: s.limiter.Since(now),
		Limit: s.limiter.Limit(),
	})
	if errors.Is(err, repository.ErrKeyTaken) {
		// The blob under key now belongs to the existing record; leave it in place.
		s.metrics.Upload(metrics.OutcomeFailed)
		s.log.Error().Str("key", key).Msg("storage key claimed by a concurrent upload")
		return model.UploadResult{}, false, fmt.Errorf("db save failed: %w", err)
	}
	if err != nil {
		s.discard(key)
		if errors.Is(err, repository.ErrQuotaExceeded) {
			s.metrics.Upload(metrics.OutcomeRejected)
			s.log.Info().Str("ip", clientIP).Str("key", key).Msg("upload quota exceeded after write")
			return model.UploadResult{}, false, ErrQuotaExceeded
		}
		s.metrics.Upload(metrics.OutcomeFailed)
		return model.UploadResult{}, false, fmt.Errorf("db save failed: %w", err)
	}
	if !created {
		// Another request stored the same content first.
		s.discard(key)
		s.metrics.Upload(metrics.OutcomeDeduplicated)
		return model.UploadResult{URL: stored.URL, Type: f.ContentType}, false, nil
	}

	s.metrics.Upload(metrics.OutcomeCreated)
	s.log.Debug().Str("identifier", stored.Identifier).Str("key", key).Str("ip", clientIP).Msg("upload stored")
	return model.UploadResult{URL: stored.URL, Identifier: stored.Identifier, Type: f.ContentType}, false, nil
}

// reserveKey draws storage keys until one is not taken in the blob store.
func (s *imageService) reserveKey(ctx context.Context, now time.Time, ext string) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := storageKey(now, ext)
		if err != nil {
			return "", err
		}
		_, err = s.store.Stat(ctx, key)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			return key, nil
		case err != nil:
			return "", fmt.Errorf("check storage key: %w", err)
		}
		s.log.Warn().Str("key", key).Msg("storage key collision")
	}
	return "", fmt.Errorf("no free storage key after %d attempts", maxKeyAttempts)
}

// discard removes a blob whose record was never committed.
// It runs on a fresh context so a cancelled request still cleans up.
func (s *imageService) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheFillTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rollback delete failed")
	}
}

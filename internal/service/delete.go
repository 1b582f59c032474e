package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Delete removes the blob before the record, so a failure in between never leaves
// a live object behind a record the caller believes is gone.
func (s *imageService) Delete(ctx context.Context, identifier string) error {
	if identifier == "" {
		return ErrIdentifierRequired
	}
	rec, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup identifier: %w", err)
	}

	key, err := keyFromURL(rec.URL)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.repo.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	cacheKey := s.publicURL(key)
	s.guard.invalidate(cacheKey)
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.log.Warn().Err(err).Str("identifier", identifier).Msg("cache evict failed")
		}
	}
	if err := s.purger.Purge(ctx, []string{rec.URL}); err != nil {
		s.metrics.PurgeFailed()
		s.log.Warn().Err(err).Str("identifier", identifier).Str("url", rec.URL).Msg("cache purge failed")
	}

	s.log.Info().Str("identifier", identifier).Str("key", key).Msg("upload deleted")
	return nil
}

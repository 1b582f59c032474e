package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"imgbed/internal/cache"
	"imgbed/internal/model"
	"imgbed/internal/storage"
)

func (s *imageService) Fetch(ctx context.Context, path string) (*model.ObjectResponse, error) {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return nil, ErrNotFound
	}
	cacheKey := s.publicURL(key)

	// A fill may only use bytes read after this point; Delete bumps the generation.
	gen := s.guard.acquire(cacheKey)
	filling := false
	defer func() {
		if !filling {
			s.guard.release(cacheKey, gen)
		}
	}()

	if s.cache != nil {
		entry, ok, err := s.cache.Match(ctx, cacheKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", cacheKey).Msg("cache lookup failed")
		}
		if ok && err == nil {
			s.metrics.CacheLookup(true)
			return &model.ObjectResponse{
				Status:       http.StatusOK,
				ContentType:  entry.ContentType,
				CacheControl: immutableCacheCtl,
				Size:         int64(len(entry.Body)),
				Body:         io.NopCloser(bytes.NewReader(entry.Body)),
				CacheHit:     true,
			}, nil
		}
		s.metrics.CacheLookup(false)
	}

	body, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return s.fallback(ctx, key)
		}
		return nil, fmt.Errorf("fetch object: %w", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	resp := &model.ObjectResponse{
		Status:      http.StatusOK,
		ContentType: contentType,
		Size:        info.Size,
		Body:        body,
	}

	if s.cache == nil || info.Size < 0 || info.Size > s.opts.CacheMaxObject {
		return resp, nil
	}

	data, err := io.ReadAll(io.LimitReader(body, s.opts.CacheMaxObject+1))
	_ = body.Close()
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.Size = int64(len(data))
	resp.CacheControl = immutableCacheCtl
	filling = true
	s.fill(cacheKey, gen, &cache.Entry{ContentType: contentType, Body: data})
	return resp, nil
}

// fallback serves the configured not-found object with a 404 status.
func (s *imageService) fallback(ctx context.Context, missing string) (*model.ObjectResponse, error) {
	if s.opts.NotFoundKey == "" || missing == s.opts.NotFoundKey {
		return nil, ErrNotFound
	}
	body, info, err := s.store.Get(ctx, s.opts.NotFoundKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch fallback object: %w", err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = fallbackContentType
	}
	return &model.ObjectResponse{
		Status:      http.StatusNotFound,
		ContentType: contentType,
		Size:        info.Size,
		Body:        body,
	}, nil
}

// fill stores e in the cache without blocking the caller. If the object was
// deleted while the write was in flight, the entry is evicted again.
func (s *imageService) fill(key string, gen uint64, e *cache.Entry) {
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cacheFillTimeout)
		defer cancel()

		err := s.cache.Put(ctx, key, e)
		stale := s.guard.release(key, gen)
		if err != nil {
			s.metrics.CacheFillFailed()
			s.log.Warn().Err(err).Str("key", key).Int("size", len(e.Body)).Msg("cache fill failed")
			return
		}
		if stale {
			if err := s.cache.Delete(ctx, key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("stale cache fill evict failed")
			}
		}
	}()
}

// fillGuard counts pending fills per cache key and a generation that Delete
// advances. Keys without pending fills are not tracked.
type fillGuard struct {
	mu   sync.Mutex
	keys map[string]*guardEntry
}

type guardEntry struct {
	pending int
	gen     uint64
}

func (g *fillGuard) acquire(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = make(map[string]*guardEntry)
	}
	e, ok := g.keys[key]
	if !ok {
		e = &guardEntry{}
		g.keys[key] = e
	}
	e.pending++
	return e.gen
}

// release reports whether key was invalidated after gen was acquired.
func (g *fillGuard) release(key string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.keys[key]
	if !ok {
		return false
	}
	stale := e.gen != gen
	e.pending--
	if e.pending <= 0 {
		delete(g.keys, key)
	}
	return stale
}

func (g *fillGuard) invalidate(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.keys[key]; ok {
		e.gen++
	}
}

// Package cache is the size-bounded edge cache for object responses.
// It is best-effort: a failed put or a missing entry never breaks a request.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/allegro/bigcache/v3"

	"imgbed/internal/config"
)

// Entry is a cached object response.
type Entry struct {
	ContentType string
	Body        []byte
}

// Cache stores object responses keyed by canonical URL.
type Cache interface {
	// Match returns the entry for key, with ok == false on a miss.
	Match(ctx context.Context, key string) (e *Entry, ok bool, err error)
	// Put stores e under key, replacing any previous entry.
	Put(ctx context.Context, key string, e *Entry) error
	// Delete evicts key. Evicting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BigCache is an in-process Cache backed by bigcache.
// Entries larger than one shard are rejected by Put.
type BigCache struct {
	cache *bigcache.BigCache
}

var _ Cache = (*BigCache)(nil)

// entryOverhead covers the key, framing and bigcache's per-entry header.
const entryOverhead = 64 * 1024

// NewBigCache builds the cache. HardMaxMB caps total memory across all shards.
// An entry must fit in one shard, so the per-shard budget has to hold the
// largest cache-eligible object.
func NewBigCache(cfg config.CacheConfig) (*BigCache, error) {
	bc := bigcache.DefaultConfig(cfg.LifeWindow)
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.HardMaxMB > 0 && cfg.MaxObjectMB > 0 {
		shardBytes := int64(cfg.HardMaxMB) * 1024 * 1024 / int64(bc.Shards)
		if shardBytes < cfg.MaxObjectBytes()+entryOverhead {
			return nil, fmt.Errorf("cache shard holds %d bytes (CACHE_HARD_MAX_MB/CACHE_SHARDS), below CACHE_MAX_OBJECT_MB of %d bytes",
				shardBytes, cfg.MaxObjectBytes())
		}
	}
	bc.HardMaxCacheSize = cfg.HardMaxMB
	// Initial allocation only; shards grow up to HardMaxCacheSize.
	bc.MaxEntriesInWindow = 256
	bc.MaxEntrySize = 256 * 1024
	bc.CleanWindow = cfg.LifeWindow / 4
	bc.Verbose = false

	c, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("create bigcache: %w", err)
	}
	return &BigCache{cache: c}, nil
}

// Match looks up key.
func (b *BigCache) Match(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := b.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	e, err := decodeEntry(raw)
	if err != nil {
		// Drop entries we cannot read back.
		_ = b.cache.Delete(key)
		return nil, false, nil
	}
	return e, true, nil
}

// Put stores e under key.
func (b *BigCache) Put(ctx context.Context, key string, e *Entry) error {
	raw, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return b.cache.Set(key, raw)
}

// Delete evicts key.
func (b *BigCache) Delete(ctx context.Context, key string) error {
	if err := b.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Len returns the number of stored entries.
func (b *BigCache) Len() int {
	return b.cache.Len()
}

// Close releases the cache's background cleaner.
func (b *BigCache) Close() error {
	return b.cache.Close()
}

// Entries are framed as: uint16 content-type length, content-type, body.
func encodeEntry(e *Entry) ([]byte, error) {
	if len(e.ContentType) > math.MaxUint16 {
		return nil, fmt.Errorf("content type too long: %d bytes", len(e.ContentType))
	}
	out := make([]byte, 2+len(e.ContentType)+len(e.Body))
	binary.BigEndian.PutUint16(out, uint16(len(e.ContentType)))
	n := copy(out[2:], e.ContentType)
	copy(out[2+n:], e.Body)
	return out, nil
}

func decodeEntry(raw []byte) (*Entry, error) {
	if len(raw) < 2 {
		return nil, errors.New("cache entry truncated")
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return nil, errors.New("cache entry truncated")
	}
	return &Entry{
		ContentType: string(raw[2 : 2+n]),
		Body:        raw[2+n:],
	}, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ncw/swift/v2"

	"imgbed/internal/config"
)

// swiftStorage implements Storage on an OpenStack Swift container.
type swiftStorage struct {
	conn      *swift.Connection
	container string
}

// NewSwift authenticates against Keystone and ensures the container exists.
func NewSwift(cfg config.SwiftConfig) (Storage, error) {
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("swift auth url is required")
	}
	if cfg.UserName == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("swift credentials are required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("swift container is required")
	}

	conn := &swift.Connection{
		AuthUrl:  cfg.AuthURL,
		UserName: cfg.UserName,
		ApiKey:   cfg.APIKey,
		Domain:   cfg.Domain,
		Tenant:   cfg.Tenant,
		Region:   cfg.Region,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("swift authenticate: %w", err)
	}
	if err := conn.ContainerCreate(ctx, cfg.Container, nil); err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	return &swiftStorage{conn: conn, container: cfg.Container}, nil
}

// Put uploads an object and its user metadata.
func (s *swiftStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	h := swift.Metadata(opt.Metadata).ObjectHeaders()
	headers, err := s.conn.ObjectPut(ctx, s.container, key, r, false, "", opt.ContentType, h)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         opt.Size,
		ETag:         headers["Etag"],
		ContentType:  opt.ContentType,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens an object for streaming.
func (s *swiftStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	f, headers, err := s.conn.ObjectOpen(ctx, s.container, key, false, nil)
	if err != nil {
		if errors.Is(err, swift.ObjectNotFound) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, err
	}
	size, err := f.Length(ctx)
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{
		Key:         key,
		Size:        size,
		ETag:        headers["Etag"],
		ContentType: headers["Content-Type"],
		Metadata:    headers.ObjectMetadata(),
	}
	if lm, err := time.Parse(time.RFC1123, headers["Last-Modified"]); err == nil {
		info.LastModified = lm
	}
	return f, info, nil
}

// Stat reads an object's headers.
func (s *swiftStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	obj, headers, err := s.conn.Object(ctx, s.container, key)
	if err != nil {
		if errors.Is(err, swift.ObjectNotFound) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         obj.Bytes,
		ETag:         obj.Hash,
		ContentType:  obj.ContentType,
		LastModified: obj.LastModified,
		Metadata:     headers.ObjectMetadata(),
	}, nil
}

// Delete removes an object by key. Swift reports a missing object as 404,
// which is treated as already deleted.
func (s *swiftStorage) Delete(ctx context.Context, key string) error {
	err := s.conn.ObjectDelete(ctx, s.container, key)
	if errors.Is(err, swift.ObjectNotFound) {
		return nil
	}
	return err
}

package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"imgbed/internal/cache"
	cacheMocks "imgbed/internal/cache/mocks"
	repoMocks "imgbed/internal/repository/mocks"
	"imgbed/internal/storage"
	storeMocks "imgbed/internal/storage/mocks"
)

const (
	objKey = "up/2024/05/01/abc123.png"
	objURL = "https://img.example.com/up/2024/05/01/abc123.png"
)

func readBody(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestImageService_Fetch_CacheHitSkipsBlobStore(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mCache := new(cacheMocks.MockCache)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), mCache, nil)

	mCache.On("Match", ctx, objURL).Return(&cache.Entry{ContentType: "image/png", Body: []byte("png")}, true, nil)

	resp, err := svc.Fetch(ctx, "/"+objKey)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, immutableCacheCtl, resp.CacheControl)
	assert.Equal(t, []byte("png"), readBody(t, resp.Body))
	mStore.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	mCache.AssertExpectations(t)
}

func TestImageService_Fetch_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mCache := new(cacheMocks.MockCache)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), mCache, nil)

	body := []byte("\x89PNG small")
	mCache.On("Match", ctx, objURL).Return(nil, false, nil)
	mStore.On("Get", ctx, objKey).Return(io.NopCloser(bytes.NewReader(body)), storage.ObjectInfo{
		Key:         objKey,
		Size:        int64(len(body)),
		ContentType: "image/png",
	}, nil)
	mCache.On("Put", mock.Anything, objURL, &cache.Entry{ContentType: "image/png", Body: body}).Return(nil)

	resp, err := svc.Fetch(ctx, "/"+objKey)
	require.NoError(t, err)
	require.NoError(t, Drain(ctx, svc))

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, immutableCacheCtl, resp.CacheControl)
	assert.Equal(t, body, readBody(t, resp.Body))
	mStore.AssertExpectations(t)
	mCache.AssertExpectations(t)
}

func TestImageService_Fetch_CacheFillFailureDoesNotFailResponse(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mCache := new(cacheMocks.MockCache)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), mCache, nil)

	mCache.On("Match", ctx, objURL).Return(nil, false, errors.New("cache down"))
	mStore.On("Get", ctx, objKey).Return(io.NopCloser(bytes.NewReader([]byte("png"))), storage.ObjectInfo{
		Size:        3,
		ContentType: "image/png",
	}, nil)
	mCache.On("Put", mock.Anything, objURL, mock.Anything).Return(errors.New("entry too big"))

	resp, err := svc.Fetch(ctx, objKey)
	require.NoError(t, err)
	require.NoError(t, Drain(ctx, svc))

	assert.Equal(t, []byte("png"), readBody(t, resp.Body))
	mCache.AssertExpectations(t)
}

func TestImageService_Fetch_LargeObjectIsNotCached(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mCache := new(cacheMocks.MockCache)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), mCache, nil)

	body := bytes.Repeat([]byte{0xff}, 2048)
	mCache.On("Match", ctx, objURL).Return(nil, false, nil)
	mStore.On("Get", ctx, objKey).Return(io.NopCloser(bytes.NewReader(body)), storage.ObjectInfo{
		Size:        int64(len(body)),
		ContentType: "image/png",
	}, nil)

	resp, err := svc.Fetch(ctx, "/"+objKey)
	require.NoError(t, err)
	require.NoError(t, Drain(ctx, svc))

	assert.Empty(t, resp.CacheControl)
	assert.Equal(t, body, readBody(t, resp.Body))
	mCache.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestImageService_Fetch_DefaultContentType(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), nil, nil)

	mStore.On("Get", ctx, objKey).Return(io.NopCloser(bytes.NewReader([]byte("raw"))), storage.ObjectInfo{Size: 3}, nil)

	resp, err := svc.Fetch(ctx, "/"+objKey)

	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", resp.ContentType)
	assert.Equal(t, []byte("raw"), readBody(t, resp.Body))
}

func TestImageService_Fetch_Missing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setupMocks func(mStore *storeMocks.MockStorage)
		wantStatus int
		wantType   string
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "fallback object served with 404",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Get", ctx, objKey).Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
				mStore.On("Get", ctx, "up/404.png").Return(io.NopCloser(bytes.NewReader([]byte("404"))), storage.ObjectInfo{Size: 3}, nil)
			},
			wantStatus: http.StatusNotFound,
			wantType:   "image/png",
		},
		{
			name: "fallback object also missing",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Get", ctx, objKey).Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
				mStore.On("Get", ctx, "up/404.png").Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "fallback lookup fails",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Get", ctx, objKey).Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound)
				mStore.On("Get", ctx, "up/404.png").Return(nil, storage.ObjectInfo{}, errors.New("timeout"))
			},
			wantErrMsg: "fetch fallback object: timeout",
		},
		{
			name: "blob store failure is not a not-found",
			setupMocks: func(mStore *storeMocks.MockStorage) {
				mStore.On("Get", ctx, objKey).Return(nil, storage.ObjectInfo{}, errors.New("connection refused"))
			},
			wantErrMsg: "fetch object: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			svc := newTestService(mStore, new(repoMocks.MockUploadRepository), nil, nil)
			tt.setupMocks(mStore)

			resp, err := svc.Fetch(ctx, "/"+objKey)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotFound)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, resp.Status)
				assert.Equal(t, tt.wantType, resp.ContentType)
				assert.Empty(t, resp.CacheControl)
				_ = resp.Body.Close()
			}
			mStore.AssertExpectations(t)
		})
	}
}

func TestImageService_Fetch_RootAndFallbackKey(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := newTestService(mStore, new(repoMocks.MockUploadRepository), nil, nil)

	_, err := svc.Fetch(ctx, "/")
	assert.ErrorIs(t, err, ErrNotFound)

	// A missing fallback object must not be looked up twice.
	mStore.On("Get", ctx, "up/404.png").Return(nil, storage.ObjectInfo{}, storage.ErrObjectNotFound).Once()
	_, err = svc.Fetch(ctx, "/up/404.png")
	assert.ErrorIs(t, err, ErrNotFound)
	mStore.AssertExpectations(t)
}

package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	local := time.Date(2023, 12, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	key, err := storageKey(local, "png")

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^up/2024/01/01/[0-9a-z]{6}\.png$`), key)

	bare, err := storageKey(local, "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^up/2024/01/01/[0-9a-z]{6}$`), bare)
}

func TestRandomSuffix(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s, err := randomSuffix(6)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9a-z]{6}$`, s)
		seen[s] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestExtension(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"photo.PNG", "image/png", "png"},
		{"archive.tar.GZ", "image/png", "gz"},
		{`C:\Users\me\shot.JPEG`, "image/jpeg", "jpeg"},
		{"noext", "image/jpeg", "jpg"},
		{"noext", "image/svg+xml", "svg"},
		{"trailingdot.", "image/webp", "webp"},
		{"noext", "application/octet-stream", ""},
		{"", "image/gif; charset=binary", "gif"},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"|"+tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, extension(tt.filename, tt.contentType))
		})
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "https://img.example.com/up/2024/05/01/abc123.png", want: "up/2024/05/01/abc123.png"},
		{raw: "http://localhost:8080/up/2024/05/01/abc123.png?v=1", want: "up/2024/05/01/abc123.png"},
		{raw: "https://img.example.com/", wantErr: true},
		{raw: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := keyFromURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublicURL(t *testing.T) {
	s := &imageService{opts: testOptions()}

	assert.Equal(t, objURL, s.publicURL(objKey))
	assert.Equal(t, objURL, s.publicURL("/"+objKey))
}

package purge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgbed/internal/config"
)

func TestNew_NoZoneIsNoop(t *testing.T) {
	p := New(config.PurgeConfig{})

	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Purge(context.Background(), []string{"https://img.example.com/a.png"}))
}

func TestCloudflare_Purge(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    purgeRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"errors":[],"result":{"id":"zone"}}`))
	}))
	defer srv.Close()

	cf := NewCloudflare(config.PurgeConfig{
		APIBase: srv.URL + "/client/v4/",
		ZoneID:  "zone-1",
		APIKey:  "key",
		Email:   "ops@example.com",
	}, srv.Client())

	err := cf.Purge(context.Background(), []string{"https://img.example.com/up/2024/05/01/abc123.png"})

	require.NoError(t, err)
	assert.Equal(t, "/client/v4/zones/zone-1/purge_cache", gotPath)
	assert.Equal(t, "key", gotHeaders.Get("X-Auth-Key"))
	assert.Equal(t, "ops@example.com", gotHeaders.Get("X-Auth-Email"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, []string{"https://img.example.com/up/2024/05/01/abc123.png"}, gotBody.Files)
}

func TestCloudflare_PurgeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "http error",
			status:  http.StatusForbidden,
			body:    `{"success":false}`,
			wantErr: "failed to purge cache: 403 Forbidden",
		},
		{
			name:    "api error",
			status:  http.StatusOK,
			body:    `{"success":false,"errors":[{"code":1012,"message":"Request must contain one of \"purge_everything\" or \"files\""}]}`,
			wantErr: "failed to purge cache: 1012",
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: "decode purge response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cf := NewCloudflare(config.PurgeConfig{APIBase: srv.URL, ZoneID: "z"}, srv.Client())
			err := cf.Purge(context.Background(), []string{"https://img.example.com/x.png"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCloudflare_EmptyListSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cf := NewCloudflare(config.PurgeConfig{APIBase: srv.URL, ZoneID: "z"}, srv.Client())

	assert.NoError(t, cf.Purge(context.Background(), nil))
	assert.False(t, called)
}

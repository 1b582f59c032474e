// Package purge invalidates public URLs at the CDN in front of the gateway.
package purge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imgbed/internal/config"
)

var tracer = otel.Tracer("imgbed/internal/purge")

// Purger removes cached copies of urls from an external edge network.
type Purger interface {
	Purge(ctx context.Context, urls []string) error
}

// New returns a Cloudflare purger, or a no-op purger when no zone is configured.
func New(cfg config.PurgeConfig) Purger {
	if cfg.ZoneID == "" {
		return Noop{}
	}
	return NewCloudflare(cfg, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	})
}

// Noop discards purge requests.
type Noop struct{}

// Purge does nothing.
func (Noop) Purge(context.Context, []string) error { return nil }

// Cloudflare calls the zone purge_cache endpoint with a file list.
type Cloudflare struct {
	client  *http.Client
	baseURL string
	zoneID  string
	apiKey  string
	email   string
}

// NewCloudflare builds a purger using client for transport.
func NewCloudflare(cfg config.PurgeConfig, client *http.Client) *Cloudflare {
	return &Cloudflare{
		client:  client,
		baseURL: strings.TrimRight(cfg.APIBase, "/"),
		zoneID:  cfg.ZoneID,
		apiKey:  cfg.APIKey,
		email:   cfg.Email,
	}
}

type purgeRequest struct {
	Files []string `json:"files"`
}

type purgeResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Purge asks the API to drop urls from every edge location.
func (c *Cloudflare) Purge(ctx context.Context, urls []string) (err error) {
	if len(urls) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "purge.Cloudflare",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("purge.files", len(urls))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(purgeRequest{Files: urls})
	if err != nil {
		return fmt.Errorf("encode purge request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/zones/%s/purge_cache", c.baseURL, c.zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("X-Auth-Email", c.email)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("purge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to purge cache: %s", resp.Status)
	}

	var out purgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode purge response: %w", err)
	}
	if !out.Success {
		if len(out.Errors) > 0 {
			return fmt.Errorf("failed to purge cache: %d %s", out.Errors[0].Code, out.Errors[0].Message)
		}
		return fmt.Errorf("failed to purge cache: unsuccessful response")
	}
	return nil
}

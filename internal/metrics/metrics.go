// Package metrics holds the pipeline counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes.
const (
	OutcomeCreated      = "created"
	OutcomeDeduplicated = "deduplicated"
	OutcomeSkipped      = "skipped"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Pipeline counts what the upload, retrieve and delete flows do.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	uploads           *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheFillFailures prometheus.Counter
	purgeFailures     prometheus.Counter
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgbed_uploads_total",
				Help: "Files processed by the upload pipeline, by outcome.",
			},
			[]string{"outcome"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgbed_cache_lookups_total",
				Help: "Edge cache lookups, by result.",
			},
			[]string{"result"},
		),
		cacheFillFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgbed_cache_fill_failures_total",
			Help: "Background cache fills that failed.",
		}),
		purgeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgbed_purge_failures_total",
			Help: "Cache invalidations that failed after a delete.",
		}),
	}

	for _, c := range []prometheus.Collector{p.uploads, p.cacheLookups, p.cacheFillFailures, p.purgeFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) Upload(outcome string) {
	if p == nil {
		return
	}
	p.uploads.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *Pipeline) CacheFillFailed() {
	if p == nil {
		return
	}
	p.cacheFillFailures.Inc()
}

func (p *Pipeline) PurgeFailed() {
	if p == nil {
		return
	}
	p.purgeFailures.Inc()
}

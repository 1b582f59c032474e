package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPipeline(reg)
	require.NoError(t, err)

	p.Upload(OutcomeCreated)
	p.Upload(OutcomeCreated)
	p.Upload(OutcomeDeduplicated)
	p.CacheLookup(true)
	p.CacheLookup(false)
	p.CacheLookup(false)
	p.CacheFillFailed()
	p.PurgeFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(p.uploads.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.uploads.WithLabelValues(OutcomeDeduplicated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheFillFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.purgeFailures))
}

func TestPipeline_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipeline(reg)
	require.NoError(t, err)

	_, err = NewPipeline(reg)
	assert.Error(t, err)
}

func TestPipeline_NilIsNoop(t *testing.T) {
	var p *Pipeline

	assert.NotPanics(t, func() {
		p.Upload(OutcomeFailed)
		p.CacheLookup(true)
		p.CacheFillFailed()
		p.PurgeFailed()
	})
}

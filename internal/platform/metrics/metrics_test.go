package metrics

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultSuccess, Result(nil))
	assert.Equal(t, ResultError, Result(errors.New("boom")))
}

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(LogRegionRotationsTotal)
	LogRegionRotationsTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LogRegionRotationsTotal))

	EngineOperationsTotal.WithLabelValues("find", ResultSuccess).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(EngineOperationsTotal.WithLabelValues("find", ResultSuccess)), 1.0)
}

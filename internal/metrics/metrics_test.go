package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		EventsTotal,
		AccessDeniedTotal,
		ApprovalRequestsTotal,
		ActiveConversations,
		GenerationItemsTotal,
		CircuitBreakerState,
		RendersTotal,
		RenderDuration,
	}

	for _, c := range collectors {
		err := prometheus.DefaultRegisterer.Register(c)
		assert.Error(t, err, "collector should already be registered")
		_, already := err.(prometheus.AlreadyRegisteredError)
		assert.True(t, already)
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(GenerationItemsTotal.WithLabelValues("timeout"))
	GenerationItemsTotal.WithLabelValues("timeout").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(GenerationItemsTotal.WithLabelValues("timeout")))
}

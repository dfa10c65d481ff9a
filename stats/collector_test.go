package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.MicroframesTX.Inc()
	c.MicroframesRX.WithLabelValues("true").Inc()
	c.DataFramesRX.Inc()
	c.BuffersForwarded.Add(3)
	c.ScheduleDepth.Set(2)

	require.Equal(t, float64(1), testutil.ToFloat64(c.MicroframesTX))
	require.Equal(t, float64(1), testutil.ToFloat64(c.DataFramesRX))
	require.Equal(t, float64(3), testutil.ToFloat64(c.BuffersForwarded))
	require.Equal(t, float64(2), testutil.ToFloat64(c.ScheduleDepth))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewCollectorDefaultsToDefaultRegisterer(t *testing.T) {
	// A second call against the same DefaultRegisterer would panic on
	// duplicate metric names, so this only checks constructing against
	// an explicit nil argument doesn't itself fail.
	require.NotPanics(t, func() {
		NewCollector(nil)
	})
}

package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-autolaunch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *metrics.Metrics
	m.Launch("polyauth", "ok")
	m.Refresh("polyauth", "ok")
	m.MountStarted()
	m.Reloaded(0)
	m.EngineError()
}

func TestReloadedSplitsZeroTargets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Reloaded(2)
	m.Reloaded(0)
	m.Launch("polyauth", "ok")

	require.Equal(t, 2.0, testutil.ToFloat64(m.ReloadSignalsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReloadNoTargetsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LaunchesTotal.WithLabelValues("polyauth", "ok")))
}

package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/reglet-dev/dlhost/domain/errors"
	"github.com/reglet-dev/dlhost/infrastructure/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Lifecycle(t *testing.T) {
	c := metrics.NewCollector()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	c.RecordLoad("native", 1, nil)
	c.RecordLoad("native", 1, &errors.LoadError{Reason: errors.LoadReasonNotFound})
	c.RecordUnload(2)

	expected := `
# HELP dlhost_loads_total Plugin load attempts by backend and outcome.
# TYPE dlhost_loads_total counter
dlhost_loads_total{backend="native",outcome="load"} 1
dlhost_loads_total{backend="native",outcome="ok"} 1
# HELP dlhost_unloads_total Plugin images released.
# TYPE dlhost_unloads_total counter
dlhost_unloads_total 1
# HELP dlhost_generation Current load generation.
# TYPE dlhost_generation gauge
dlhost_generation 2
# HELP dlhost_plugin_loaded 1 while a plugin is loaded.
# TYPE dlhost_plugin_loaded gauge
dlhost_plugin_loaded 0
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"dlhost_loads_total", "dlhost_unloads_total", "dlhost_generation", "dlhost_plugin_loaded")
	assert.NoError(t, err)
}

func TestCollector_Exchanges(t *testing.T) {
	c := metrics.NewCollector(metrics.WithNamespace("test"))

	c.RecordExchange(true, 3*time.Millisecond, nil)
	c.RecordExchange(true, time.Millisecond, &errors.ProtocolViolationError{})
	c.RecordExchange(false, time.Millisecond, nil)
	c.RecordExchange(false, 0, &errors.NotLoadedError{})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	var samples uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "test_exchanges_total":
			for _, m := range mf.GetMetric() {
				counts[labels(m)] = m.GetCounter().GetValue()
			}
		case "test_exchange_duration_seconds":
			for _, m := range mf.GetMetric() {
				samples += m.GetHistogram().GetSampleCount()
			}
		}
	}

	assert.Equal(t, map[string]float64{
		"override/ok":                 1,
		"override/protocol_violation": 1,
		"probe/ok":                    1,
		"probe/not_loaded":            1,
	}, counts)
	assert.Equal(t, uint64(3), samples)
}

func TestCollector_Lint(t *testing.T) {
	problems, err := testutil.CollectAndLint(metrics.NewCollector())
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func labels(m *dto.Metric) string {
	var mode, outcome string
	for _, lp := range m.GetLabel() {
		switch lp.GetName() {
		case "mode":
			mode = lp.GetValue()
		case "outcome":
			outcome = lp.GetValue()
		}
	}
	return mode + "/" + outcome
}

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/ir"
)

// find returns the metric family with the given name, or nil.
func find(t *testing.T, r *Recorder, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// labelValue returns the value of label name on m.
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func runReplay(t *testing.T, rec *Recorder, sink engine.Sink) {
	t.Helper()
	r, err := engine.NewReplayer(
		engine.Stream{Series: ir.MustScalarSeries("a", []float64{0, 1, 2}, []float64{0, 0, 0})},
		engine.Stream{Series: ir.MustScalarSeries("b", []float64{0.5, 1.5}, []float64{0, 0})},
	)
	require.NoError(t, err)
	p, err := engine.NewPlayer(r, engine.WithStep(1), engine.WithObserver(rec))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), sink)
	require.NoError(t, err)
}

func TestRecorder_CountsStepsAndEmissions(t *testing.T) {
	rec := New()
	runReplay(t, rec, engine.SinkFunc(func(engine.Emission) error { return nil }))

	steps := find(t, rec, "sensorsync_replay_steps_total")
	require.NotNil(t, steps)
	assert.Equal(t, 3.0, steps.GetMetric()[0].GetCounter().GetValue())

	clock := find(t, rec, "sensorsync_replay_clock_seconds")
	require.NotNil(t, clock)
	assert.Equal(t, 2.0, clock.GetMetric()[0].GetGauge().GetValue())

	emissions := find(t, rec, "sensorsync_replay_emissions_total")
	require.NotNil(t, emissions)
	got := map[string]float64{}
	for _, m := range emissions.GetMetric() {
		got[labelValue(m, "stream")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"a": 3, "b": 2}, got)
}

func TestRecorder_ObserveSubscriptions(t *testing.T) {
	rec := New()
	hub := engine.NewHub()
	_, err := hub.Subscribe(engine.SubscriptionConfig{Name: "video", Delivery: engine.BestEffort, Depth: 1})
	require.NoError(t, err)

	runReplay(t, rec, hub)
	rec.ObserveSubscriptions(hub.Subscriptions())

	dropped := find(t, rec, "sensorsync_subscription_dropped_total")
	require.NotNil(t, dropped)
	m := dropped.GetMetric()[0]
	assert.Equal(t, "video", labelValue(m, "subscription"))
	assert.Equal(t, "best_effort", labelValue(m, "delivery"))
	assert.Equal(t, 4.0, m.GetGauge().GetValue())

	queued := find(t, rec, "sensorsync_subscription_queued")
	require.NotNil(t, queued)
	assert.Equal(t, 1.0, queued.GetMetric()[0].GetGauge().GetValue())
}

func TestRecorder_WriteTextfile(t *testing.T) {
	rec := New()
	rec.ObserveStep(0.5, 1)

	path := filepath.Join(t.TempDir(), "replay.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sensorsync_replay_steps_total 1")
	assert.Contains(t, string(data), "sensorsync_replay_clock_seconds 0.5")
}

// Package metrics records replay progress as Prometheus metrics.
//
// A Recorder is an engine.Observer; attach it to a Player with
// engine.WithObserver. The CLI writes the registry to a text file after a
// run so results can be collected by a node exporter or inspected by hand.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/roach88/sensorsync/internal/engine"
)

// Recorder holds Prometheus counters and gauges for one replay.
type Recorder struct {
	registry *prometheus.Registry

	stepsTotal      prometheus.Counter
	emissionsTotal  *prometheus.CounterVec
	clockSeconds    prometheus.Gauge
	subscriptionLen *prometheus.GaugeVec
	droppedTotal    *prometheus.GaugeVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorsync_replay_steps_total",
			Help: "Total number of replay steps taken",
		}),
		emissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorsync_replay_emissions_total",
			Help: "Total number of samples emitted, by stream",
		}, []string{"stream"}),
		clockSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorsync_replay_clock_seconds",
			Help: "Virtual clock after the most recent step",
		}),
		subscriptionLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensorsync_subscription_queued",
			Help: "Messages waiting in a subscription queue",
		}, []string{"subscription", "delivery"}),
		droppedTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensorsync_subscription_dropped_total",
			Help: "Messages evicted from a best-effort subscription",
		}, []string{"subscription", "delivery"}),
	}

	registry.MustRegister(
		r.stepsTotal,
		r.emissionsTotal,
		r.clockSeconds,
		r.subscriptionLen,
		r.droppedTotal,
	)
	return r
}

// ObserveStep implements engine.Observer.
func (r *Recorder) ObserveStep(clock float64, _ int) {
	r.stepsTotal.Inc()
	r.clockSeconds.Set(clock)
}

// ObserveEmission implements engine.Observer.
func (r *Recorder) ObserveEmission(e engine.Emission) {
	r.emissionsTotal.WithLabelValues(string(e.Stream)).Inc()
}

// ObserveSubscriptions snapshots queue depth and drop counts.
// Drop counts are cumulative in the subscription, so they are exported as
// gauges set from the source of truth.
func (r *Recorder) ObserveSubscriptions(subs []*engine.Subscription) {
	for _, s := range subs {
		labels := []string{s.Name(), s.Delivery().String()}
		r.subscriptionLen.WithLabelValues(labels...).Set(float64(s.Len()))
		r.droppedTotal.WithLabelValues(labels...).Set(float64(s.Dropped()))
	}
}

// Gather returns the current metric families.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

var _ engine.Observer = (*Recorder)(nil)

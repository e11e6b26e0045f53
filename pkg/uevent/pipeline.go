package uevent

import (
	"time"

	"github.com/cuemby/warren/pkg/metrics"
)

// Pipeline bundles a Listener and Dispatcher sharing a handoff queue, ready
// to be run as a pair of goroutines by the caller.
type Pipeline struct {
	Listener   *Listener
	Dispatcher *Dispatcher
}

// NewPipeline wires a Source into a Listener/Dispatcher pair backed by a
// shared handoff queue and the given config store. Metrics are reported to
// pkg/metrics; pass a nil config to fall back to an empty, static config
// (devnode filtering accepts everything, merging disabled).
func NewPipeline(source Source, cfg ListenerConfig, config *ConfigStore) *Pipeline {
	if config == nil {
		config = &ConfigStore{current: emptyConfig}
	}

	q := newQueue()
	m := prometheusMetrics{}

	return &Pipeline{
		Listener:   newListener(source, q, cfg, m),
		Dispatcher: newDispatcher(q, config, m),
	}
}

// prometheusMetrics implements ListenerMetrics and DispatcherMetrics on top
// of the package-level vars in pkg/metrics, following this corpus's
// convention of package-level collectors registered once in an init().
type prometheusMetrics struct{}

func (prometheusMetrics) IncReceived() {
	metrics.UeventReceivedTotal.Inc()
}

func (prometheusMetrics) IncDropped(reason string) {
	metrics.UeventDroppedTotal.WithLabelValues(reason).Inc()
}

func (prometheusMetrics) ObserveBurst(d time.Duration) {
	metrics.UeventBurstDuration.Observe(d.Seconds())
}

func (prometheusMetrics) IncMerged() {
	metrics.UeventMergedTotal.Inc()
}

func (prometheusMetrics) ObserveQueueDepth(n int) {
	metrics.UeventQueueDepth.Set(float64(n))
}

func (prometheusMetrics) ObserveTrigger(d time.Duration) {
	metrics.UeventTriggerDuration.Observe(d.Seconds())
}

func (prometheusMetrics) IncTriggerError() {
	metrics.UeventTriggerErrorsTotal.Inc()
}

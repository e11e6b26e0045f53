package uevent

import "time"

// ListenerMetrics receives observability callbacks from a Listener. Defined
// as an interface, not a concrete Prometheus type, so package uevent itself
// carries no Prometheus dependency and tests can assert on a fake; the
// concrete implementation lives in metricsHooks and forwards to
// pkg/metrics.
type ListenerMetrics interface {
	IncReceived()
	IncDropped(reason string)
	ObserveBurst(d time.Duration)
}

// DispatcherMetrics receives observability callbacks from a Dispatcher.
type DispatcherMetrics interface {
	IncDropped(reason string)
	IncMerged()
	ObserveQueueDepth(n int)
	ObserveTrigger(d time.Duration)
	IncTriggerError()
}

// noopMetrics implements both ListenerMetrics and DispatcherMetrics as
// no-ops, used when the caller does not wire in pkg/metrics (e.g. unit
// tests of the pipeline in isolation).
type noopMetrics struct{}

func (noopMetrics) IncReceived()                   {}
func (noopMetrics) IncDropped(reason string)       {}
func (noopMetrics) ObserveBurst(d time.Duration)   {}
func (noopMetrics) IncMerged()                     {}
func (noopMetrics) ObserveQueueDepth(n int)        {}
func (noopMetrics) ObserveTrigger(d time.Duration) {}
func (noopMetrics) IncTriggerError()               {}

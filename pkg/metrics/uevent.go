package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// UeventReceivedTotal counts every raw kernel notification the path
	// monitor's listener turned into an Event.
	UeventReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warren_uevent_received_total",
			Help: "Total number of kernel uevents received by the path monitor listener",
		},
	)

	// UeventDroppedTotal counts events dropped before reaching the
	// dispatcher's trigger, by reason.
	UeventDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warren_uevent_dropped_total",
			Help: "Total number of uevents dropped before dispatch, by reason",
		},
		[]string{"reason"},
	)

	// UeventMergedTotal counts events absorbed into a parent by the merge
	// pass.
	UeventMergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warren_uevent_merged_total",
			Help: "Total number of uevents merged into a parent event",
		},
	)

	// UeventQueueDepth samples the handoff queue length on each drain.
	UeventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warren_uevent_queue_depth",
			Help: "Handoff queue depth observed at the start of the most recent drain",
		},
	)

	// UeventBurstDuration measures how long each listener accumulation
	// window ran before it flushed.
	UeventBurstDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warren_uevent_burst_duration_seconds",
			Help:    "Duration of each uevent accumulation window before flush",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UeventTriggerDuration measures the dispatcher's per-event trigger
	// callback latency.
	UeventTriggerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warren_uevent_trigger_duration_seconds",
			Help:    "Duration of the uevent dispatcher's trigger callback",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UeventTriggerErrorsTotal counts nonzero/error returns from the
	// trigger callback.
	UeventTriggerErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warren_uevent_trigger_errors_total",
			Help: "Total number of uevent trigger callback errors",
		},
	)
)

func init() {
	prometheus.MustRegister(UeventReceivedTotal)
	prometheus.MustRegister(UeventDroppedTotal)
	prometheus.MustRegister(UeventMergedTotal)
	prometheus.MustRegister(UeventQueueDepth)
	prometheus.MustRegister(UeventBurstDuration)
	prometheus.MustRegister(UeventTriggerDuration)
	prometheus.MustRegister(UeventTriggerErrorsTotal)
}

package uevent

import (
	"time"

	"github.com/rs/zerolog"
)

// TriggerFunc is invoked once per surviving top-level event after the
// prepare, filter and merge passes have run. It receives the event with any
// absorbed siblings attached under Merged, in absorption order.
type TriggerFunc func(ev *Event) error

// servicePass walks the snapshot forward, in the order the prepare and
// filter/merge passes left it in, invoking trigger once per event and then
// releasing the event (and everything merged into it). A trigger error is
// logged and counted, never propagated: one misbehaving callback must not
// stall the events queued behind it.
func servicePass(snapshot []*Event, trigger TriggerFunc, metrics DispatcherMetrics, logger zerolog.Logger) {
	for _, ev := range snapshot {
		start := time.Now()
		err := trigger(ev)
		metrics.ObserveTrigger(time.Since(start))

		if err != nil {
			metrics.IncTriggerError()
			logger.Error().
				Err(err).
				Str("action", string(ev.Action)).
				Str("kernel", ev.Kernel).
				Msg("uevent trigger callback failed")
		}

		ev.release()
	}
}

package uevent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren/pkg/log"
)

// Dispatcher drains the handoff queue in batches ("snapshots") and runs each
// one through the prepare, filter, merge and service passes before invoking
// the caller's trigger callback once per surviving event.
type Dispatcher struct {
	queue   *queue
	config  *ConfigStore
	metrics DispatcherMetrics
	logger  zerolog.Logger
}

// newDispatcher builds a Dispatcher bound to the given handoff queue and
// config store. Unexported: callers obtain a wired Listener/Dispatcher pair
// from NewPipeline.
func newDispatcher(q *queue, config *ConfigStore, metrics DispatcherMetrics) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		config:  config,
		metrics: metrics,
		logger:  log.WithComponent("uevent-dispatcher"),
	}
}

// IsBusy reports whether the handoff queue currently holds undrained events.
func (d *Dispatcher) IsBusy() bool {
	return d.queue.IsBusy()
}

// Run drains the handoff queue until ctx is cancelled, servicing one
// snapshot at a time. sync.Cond has no context-aware wait, so a background
// goroutine closes the queue when ctx is done; Close unblocks any in-progress
// Drain and causes subsequent Drain calls to return immediately.
func (d *Dispatcher) Run(ctx context.Context, trigger TriggerFunc) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.queue.Close()
		case <-done:
		}
	}()

	for {
		snapshot, ok := d.queue.Drain(ctx)
		if !ok {
			d.releaseLeftovers()
			return nil
		}
		d.metrics.ObserveQueueDepth(len(snapshot))
		d.runSnapshot(snapshot, trigger)
	}
}

// releaseLeftovers drains and releases anything appended to the queue after
// shutdown began, so a listener racing the dispatcher's exit never leaks a
// SourceHandle.
func (d *Dispatcher) releaseLeftovers() {
	for _, ev := range d.queue.drainRemaining() {
		ev.release()
	}
}

func (d *Dispatcher) runSnapshot(snapshot []*Event, trigger TriggerFunc) {
	cfg, release := d.config.Acquire()
	defer release()

	snapshot, droppedByDevnode := prepare(snapshot, cfg)
	if droppedByDevnode > 0 {
		d.metrics.IncDropped("devnode_filtered")
	}

	snapshot, droppedByFilter := filterPass(snapshot)
	if droppedByFilter > 0 {
		d.metrics.IncDropped("superseded")
	}

	if cfg.MergingEnabled() {
		var merged int
		snapshot, merged = mergePass(snapshot)
		for i := 0; i < merged; i++ {
			d.metrics.IncMerged()
		}
	}

	servicePass(snapshot, trigger, d.metrics, d.logger)
}

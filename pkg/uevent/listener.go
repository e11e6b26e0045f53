package uevent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren/pkg/log"
)

// ListenerConfig tunes a Listener's behaviour.
type ListenerConfig struct {
	// Subsystem/Devtype restrict the source subscription. Warren's path
	// monitor always wants block/disk, but tests exercise other values.
	Subsystem string
	Devtype   string

	// LockMemory requests that the listener lock its process's memory
	// pages to avoid paging-induced drops under memory pressure. Best
	// effort: failure is logged and not fatal, mirroring this corpus's
	// general treatment of privilege-dependent tuning.
	LockMemory bool
}

// Listener drains a Source, adaptively batching events under burst load,
// and flushes completed batches to a shared queue for the Dispatcher.
type Listener struct {
	source Source
	queue  *queue
	cfg    ListenerConfig
	logger zerolog.Logger

	metrics ListenerMetrics
}

// newListener builds a Listener bound to the given source and handoff
// queue. Unexported: callers obtain a wired Listener/Dispatcher pair from
// NewPipeline.
func newListener(source Source, q *queue, cfg ListenerConfig, metrics ListenerMetrics) *Listener {
	return &Listener{
		source:  source,
		queue:   q,
		cfg:     cfg,
		logger:  log.WithComponent("uevent-listener"),
		metrics: metrics,
	}
}

// Run drains the source until ctx is cancelled or the source fails fatally.
// It subscribes once at entry and releases the source via defer on every
// exit path, per the distilled spec's "asynchronous shutdown via scoped
// cleanup" requirement.
func (l *Listener) Run(ctx context.Context) error {
	if l.cfg.LockMemory {
		if err := lockMemory(); err != nil {
			l.logger.Warn().Err(err).Msg("failed to lock listener memory pages, continuing without it")
		}
	}

	if err := l.source.Subscribe(l.cfg.Subsystem, l.cfg.Devtype); err != nil {
		return fmt.Errorf("uevent: subscribing to source: %w", err)
	}
	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn().Err(err).Msg("error closing source on listener shutdown")
		}
	}()

	var staging []*Event
	events := 0
	windowStart := time.Now()
	pollTimeout := IdlePollTimeout

	for {
		if ctx.Err() != nil {
			for _, ev := range staging {
				ev.release()
			}
			return nil
		}

		result, err := l.source.Poll(ctx, pollTimeout)
		if err != nil {
			return fmt.Errorf("uevent: fatal source error: %w", err)
		}

		switch result {
		case PollReady:
			raw, ok, recvErr := l.source.Recv()
			if recvErr != nil {
				l.logger.Debug().Err(recvErr).Msg("transient error receiving notification, continuing")
				continue
			}
			if !ok {
				l.logger.Debug().Msg("poll reported ready but recv had nothing buffered")
				continue
			}

			ev, built := newEvent(raw, sourceHandleFor(raw))
			if !built {
				raw.Release()
				l.metrics.IncDropped("missing_fields")
				continue
			}

			staging = append(staging, ev)
			events++
			l.metrics.IncReceived()

			pollTimeout = burstTimeout(events, time.Since(windowStart))

		case PollInterrupted:
			// loop without flushing

		case PollTimeout:
			if len(staging) > 0 {
				l.metrics.ObserveBurst(time.Since(windowStart))
				l.queue.AppendBatch(staging)
				staging = nil
			}
			events = 0
			windowStart = time.Now()
			pollTimeout = IdlePollTimeout

		default:
			return fmt.Errorf("uevent: unknown poll result %v", result)
		}
	}
}

// burstTimeout implements the distilled spec's burst rule: given the number
// of events accumulated in the current window and the elapsed time, decide
// the poll timeout for the next iteration. The continue/end decision is
// evaluated as a cross-multiplication (events*1000 vs MinBurstSpeed*elapsed)
// rather than a divided "speed" value, so it matches the rate comparison
// exactly instead of being skewed by integer-division truncation.
func burstTimeout(events int, elapsed time.Duration) time.Duration {
	if events > MaxAccumulationCount {
		return 0
	}
	elapsedMs := elapsed.Milliseconds()
	if elapsedMs == 0 {
		return time.Millisecond
	}
	if elapsed > MaxAccumulationTime {
		return 0
	}
	if int64(events)*1000 > MinBurstSpeed*elapsedMs {
		return time.Millisecond
	}
	return 0
}

// sourceHandleFor adapts a RawEvent to the SourceHandle interface Event
// expects, so the event's own release path is source-agnostic.
func sourceHandleFor(raw RawEvent) SourceHandle {
	return rawHandle{raw}
}

type rawHandle struct{ raw RawEvent }

func (h rawHandle) Release() { h.raw.Release() }

// lockMemory is implemented per-OS; see memlock_linux.go and
// memlock_other.go.
var errMemoryLockUnsupported = errors.New("uevent: memory locking not supported on this platform")

package uevent

import (
	"context"
	"time"
)

// PollResult is the outcome of a Source.Poll call.
type PollResult int

const (
	// PollReady indicates data is available via Recv.
	PollReady PollResult = iota
	// PollTimeout indicates the poll timeout elapsed with nothing ready.
	PollTimeout
	// PollInterrupted indicates the poll was interrupted (e.g. by a
	// signal) and should simply be retried without flushing.
	PollInterrupted
)

// RawEvent is a single raw kernel notification as handed back by a Source.
// Release must be called exactly once, whether or not the notification is
// turned into an Event.
type RawEvent interface {
	// Properties returns the notification's property list in wire order.
	Properties() []EnvPair
	// Release returns the notification's underlying resources. Safe to
	// call even if the notification was dropped without being read.
	Release()
}

// Source is the external contract the listener depends on: open a kernel
// event channel, subscribe to a subsystem/devtype pair, and block for the
// next notification. Warren does not care which kernel mechanism backs it,
// only that delivery is in-order per device.
type Source interface {
	// Subscribe restricts the source to a given subsystem/devtype pair
	// (e.g. "block"/"disk"). Must be called before the first Poll.
	Subscribe(subsystem, devtype string) error

	// Poll blocks until a notification is ready, the timeout elapses, or
	// the poll is interrupted. A timeout of zero never blocks.
	Poll(ctx context.Context, timeout time.Duration) (PollResult, error)

	// Recv returns the next buffered notification. Only valid to call
	// after Poll has reported PollReady. Returns ok=false if nothing is
	// actually buffered (a transient condition that should be logged and
	// treated as "continue").
	Recv() (RawEvent, bool, error)

	// Close releases the source's underlying descriptor and any
	// subscription state.
	Close() error
}

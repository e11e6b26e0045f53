/*
Package uevent implements Warren's kernel hotplug ingestion and coalescing
core for block-path volumes.

Worker nodes that back volumes with multipathed SAN/iSCSI/FC storage see a
burst of kernel add/change/remove notifications per path whenever a LUN is
attached, detached, or rescanned — one notification per physical path, even
though all of those paths aggregate into a single logical device. Without
coalescing, the volume subsystem would reconfigure its view of that device
once per path event, which both serialises behind the volume lock and risks
falling behind the kernel's netlink receive buffer during a large rescan.

# Architecture

Two goroutines share a bounded handoff queue:

	┌─────────────────────────────────────────────────────────────┐
	│                     UEVENT PIPELINE                          │
	│                                                                │
	│   Source (kernel netlink, or FakeSource in tests)            │
	│        │ poll / recv                                          │
	│        ▼                                                      │
	│   ┌─────────────┐   append-batch    ┌──────────────────┐     │
	│   │  Listener   │ ─────────────────▶│  Handoff Queue    │     │
	│   │ (adaptive   │                    │  (FIFO, mutex +  │     │
	│   │  burst loop)│                    │   cond, busy flag)│    │
	│   └─────────────┘                    └─────────┬────────┘     │
	│                                                  │ drain        │
	│                                                  ▼              │
	│                                       ┌────────────────────┐  │
	│                                       │    Dispatcher       │  │
	│                                       │ prepare → filter →  │  │
	│                                       │ merge → service      │  │
	│                                       └─────────┬──────────┘  │
	│                                                  │ TriggerFunc  │
	│                                                  ▼              │
	│                                     pkg/volume.MultipathDriver  │
	└─────────────────────────────────────────────────────────────┘

The Listener drains the source with minimal latency and adaptively decides,
window by window, whether to keep accumulating events (a burst is in
progress) or flush immediately (arrivals have gone sparse). The Dispatcher
pops whole queue snapshots and runs a prepare/filter/merge pipeline before
invoking the caller-supplied trigger once per surviving event, carrying any
merged sibling events along for the caller to inspect.

# Event lifecycle

An Event is created by the Listener from a raw source notification that has
both DEVPATH and ACTION present (anything else is dropped at ingestion). It
lives in the Listener's staging slice, is handed to the handoff queue in a
batch, and from there becomes the Dispatcher's exclusive responsibility: only
WWID and Merged may still change, and the event is released either when the
trigger has been invoked for it directly, or when it has been absorbed into a
parent's Merged slice and that parent is later serviced.

# Burst accumulation

The Listener polls the source with an adaptive timeout. Each time it
receives an event it recomputes the timeout for the next poll from the
number of events seen in the current window and the elapsed time:

  - more than MaxAccumulationCount events in the window ends the burst
    immediately (flush on the next poll);
  - an elapsed time of exactly zero continues the burst (arrivals are
    too fast to measure, so a 1ms timeout is used to drain more);
  - elapsed time beyond MaxAccumulationTime ends the burst regardless of
    rate, to bound tail latency;
  - otherwise the instantaneous rate (events * 1000 / elapsed_ms) is
    compared against MinBurstSpeed.

When poll returns timeout or zero-ready, anything staged is flushed to the
handoff queue as one batch and the window resets.

# Coalescing

Merging only runs when the configuration snapshot carries a non-empty set of
identifier-attribute rules. Within a single dispatcher snapshot, later events
absorb earlier ones that share a WWID, share an action, and are not `change`
— because change events may each carry a distinct payload that must not be
silently dropped. dm-* kernel names (the multipath virtual devices
themselves) are devnode-filter-exempt and never merge; they act as merge
barriers for events that precede them.
*/
package uevent

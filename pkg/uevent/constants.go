package uevent

import "time"

const (
	// MaxAccumulationCount ends a burst once this many events have
	// accumulated in the current window, regardless of rate.
	MaxAccumulationCount = 2048

	// MaxAccumulationTime bounds how long a burst may run before it is
	// force-ended and the staged events are flushed.
	MaxAccumulationTime = 30 * time.Second

	// MinBurstSpeed is the arrival rate, in events/sec, below which the
	// burst is considered over and the listener flushes promptly.
	MinBurstSpeed = 10

	// IdlePollTimeout is the poll timeout used whenever the listener is
	// not in the middle of a burst.
	IdlePollTimeout = 30 * time.Second

	// HotplugBufferSize bounds the total bytes of "key=value" pairs
	// copied into a single event's environment.
	HotplugBufferSize = 2048

	// HotplugNumEnvp bounds the number of environment entries captured
	// per event (one less is usable; the last slot mirrors the historical
	// NULL terminator of the kernel's envp array).
	HotplugNumEnvp = 32

	// MpathUUIDPrefix is the DM_UUID prefix identifying a device-mapper
	// multipath device.
	MpathUUIDPrefix = "mpath-"
)

// dmPrefix identifies device-mapper kernel names, which are merge barriers
// and are exempt from devnode filtering.
const dmPrefix = "dm-"

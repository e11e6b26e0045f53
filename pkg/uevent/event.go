package uevent

import "strings"

// Action is the kernel notification verb. Only Add, Change, and Remove have
// algorithmic meaning to the dispatcher; the rest pass through prepare and
// service unchanged.
type Action string

const (
	ActionAdd     Action = "add"
	ActionChange  Action = "change"
	ActionRemove  Action = "remove"
	ActionMove    Action = "move"
	ActionOnline  Action = "online"
	ActionOffline Action = "offline"
	ActionBind    Action = "bind"
	ActionUnbind  Action = "unbind"
)

// Event is one kernel notification, from construction by the Listener
// through release by the Dispatcher. Exactly one owner holds an Event at any
// instant: the listener's staging slice, the handoff queue, the dispatcher's
// working snapshot, or a parent's Merged slice. Once an Event has been
// handed off, only WWID and Merged may still change, and only the
// dispatcher changes them.
type Event struct {
	Action  Action
	Devpath string
	Kernel  string

	// WWID is the stable logical-unit identifier, resolved lazily by the
	// dispatcher's prepare pass against an identifier-attribute rule. It
	// remains empty when merging is disabled or no rule matches.
	WWID string

	// Merged holds child events absorbed into this one by the merge pass,
	// in absorption order. A serviced event with a non-empty Merged
	// represents every one of those children having occurred.
	Merged []*Event

	env    *envBag
	handle SourceHandle
}

// SourceHandle is an opaque reference to the source adapter's underlying
// notification object. It must be released exactly once, whether the Event
// it belongs to is serviced directly or absorbed as a merge child.
type SourceHandle interface {
	Release()
}

// NewEvent builds an Event from a raw notification's property list,
// applying the ingestion budgets and computing Devpath/Action/Kernel. It
// returns ok=false if DEVPATH or ACTION is missing, in which case the
// caller must still release handle itself — NewEvent does not take
// ownership on a failed build. Exported so Source implementations and
// tests outside this package can build Events the same way the Listener
// does.
func NewEvent(raw RawEvent, handle SourceHandle) (*Event, bool) {
	return newEvent(raw, handle)
}

func newEvent(raw RawEvent, handle SourceHandle) (*Event, bool) {
	bag := newEnvBag()
	for _, p := range raw.Properties() {
		if bag.put(p.Key, p.Value) {
			break // budget exhausted; keep what was captured
		}
	}

	devpath, hasDevpath := bag.get("DEVPATH")
	action, hasAction := bag.get("ACTION")
	if !hasDevpath || !hasAction {
		return nil, false
	}

	ev := &Event{
		Action:  Action(action),
		Devpath: devpath,
		Kernel:  kernelOf(devpath),
		env:     bag,
		handle:  handle,
	}
	return ev, true
}

// kernelOf returns the substring of devpath after its last slash.
func kernelOf(devpath string) string {
	if i := strings.LastIndexByte(devpath, '/'); i >= 0 {
		return devpath[i+1:]
	}
	return devpath
}

// isDM reports whether the event's kernel name identifies a device-mapper
// virtual device (a multipath device itself, not a physical path).
func (e *Event) isDM() bool {
	return strings.HasPrefix(e.Kernel, dmPrefix)
}

// IsDM is the exported form of isDM, for callers outside this package that
// consume serviced events (e.g. the multipath volume driver).
func (e *Event) IsDM() bool {
	return e.isDM()
}

// release disposes of the event and, recursively, every merged child,
// returning each underlying source handle exactly once.
func (e *Event) release() {
	for _, child := range e.Merged {
		child.release()
	}
	e.Merged = nil
	if e.handle != nil {
		e.handle.Release()
		e.handle = nil
	}
}

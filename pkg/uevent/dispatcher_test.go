package uevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEvent builds an Event with a preset WWID and no env, so the prepare
// pass's env-driven resolution leaves it untouched (GetEnv on a nil env
// bag always misses).
func testEvent(action Action, kernel, wwid string) *Event {
	return &Event{Action: action, Kernel: kernel, Devpath: "/devices/" + kernel, WWID: wwid, handle: noopHandle{}}
}

type noopHandle struct{}

func (noopHandle) Release() {}

func mergingConfig() *Config {
	return &Config{UIDRules: []UIDRule{{KernelPattern: "*", EnvKey: "ID_SERIAL"}}}
}

func kernels(events []*Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kernel
	}
	return out
}

func newTestDispatcher(t *testing.T, cfg *Config) *Dispatcher {
	t.Helper()
	store := &ConfigStore{current: cfg}
	return newDispatcher(newQueue(), store, noopMetrics{})
}

// runScenario puts snapshot through prepare, filter and (if merging is
// enabled) merge, mirroring Dispatcher.runSnapshot without the queue.
func runScenario(t *testing.T, cfg *Config, snapshot []*Event) []*Event {
	t.Helper()
	d := newTestDispatcher(t, cfg)
	cfgSnap, release := d.config.Acquire()
	defer release()

	snapshot, _ = prepare(snapshot, cfgSnap)
	snapshot, _ = filterPass(snapshot)
	if cfgSnap.MergingEnabled() {
		snapshot, _ = mergePass(snapshot)
	}
	return snapshot
}

func TestDispatcher_Scenario1_ChangeThenAddCollapseByAdd(t *testing.T) {
	// add sdb ; change sdb ; add sdb ; add sdc — the change is filtered by
	// the subsequent add of the same kernel, and the two add sdb events
	// merge into the final add sdc.
	snapshot := []*Event{
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionChange, "sdb", "W"),
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionAdd, "sdc", "W"),
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 1)
	assert.Equal(t, "sdc", out[0].Kernel)
	assert.Equal(t, ActionAdd, out[0].Action)
	require.Len(t, out[0].Merged, 2)
}

func TestDispatcher_Scenario1Literal_UnrelatedChangeSurvives(t *testing.T) {
	// The literal 3-event form (no second add sdb): the change has no
	// later same-kernel event to filter it, so it survives untouched
	// alongside the add sdc/sdb merge.
	snapshot := []*Event{
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionChange, "sdb", "W"),
		testEvent(ActionAdd, "sdc", "W"),
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 2)
	assert.Equal(t, "sdb", out[0].Kernel)
	assert.Equal(t, ActionChange, out[0].Action)
	assert.Equal(t, "sdc", out[1].Kernel)
	require.Len(t, out[1].Merged, 1)
	assert.Equal(t, "sdb", out[1].Merged[0].Kernel)
}

func TestDispatcher_Scenario2_RemoveAnnihilatesPriorHistoryNoMerge(t *testing.T) {
	snapshot := []*Event{
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionChange, "sdb", "W"),
		testEvent(ActionAdd, "sdc", "W"),
		testEvent(ActionRemove, "sdb", ""), // wwid unresolved on remove
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 2)
	assert.ElementsMatch(t, []string{"sdc", "sdb"}, kernels(out))
	for _, ev := range out {
		assert.Empty(t, ev.Merged)
	}
}

func TestDispatcher_Scenario3_DifferentWWIDsDoNotMerge(t *testing.T) {
	snapshot := []*Event{
		testEvent(ActionAdd, "sda", "W1"),
		testEvent(ActionAdd, "sdb", "W1"),
		testEvent(ActionAdd, "sdc", "W2"),
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 2)
	assert.Equal(t, "sdb", out[0].Kernel)
	require.Len(t, out[0].Merged, 1)
	assert.Equal(t, "sda", out[0].Merged[0].Kernel)
	assert.Equal(t, "sdc", out[1].Kernel)
	assert.Empty(t, out[1].Merged)
}

func TestDispatcher_Scenario4_RepeatedRemoveAddCollapsesToOneAdd(t *testing.T) {
	snapshot := []*Event{
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionRemove, "sdb", "W"),
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionRemove, "sdb", "W"),
		testEvent(ActionAdd, "sdb", "W"),
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 1)
	assert.Equal(t, "sdb", out[0].Kernel)
	assert.Equal(t, ActionAdd, out[0].Action)
	assert.Len(t, out[0].Merged, 2)
}

func TestDispatcher_Scenario5_DMEventIsABarrierAndNeverMerges(t *testing.T) {
	snapshot := []*Event{
		testEvent(ActionChange, "dm-0", ""),
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionAdd, "sdc", "W"),
	}
	out := runScenario(t, mergingConfig(), snapshot)

	require.Len(t, out, 2)
	assert.Equal(t, "dm-0", out[0].Kernel)
	assert.Equal(t, "sdc", out[1].Kernel)
	require.Len(t, out[1].Merged, 1)
	assert.Equal(t, "sdb", out[1].Merged[0].Kernel)
}

func TestDispatcher_Scenario6_MergingDisabledNeverMerges(t *testing.T) {
	snapshot := []*Event{
		testEvent(ActionAdd, "sdb", "W"),
		testEvent(ActionAdd, "sdc", "W"),
	}
	out := runScenario(t, &Config{}, snapshot)

	require.Len(t, out, 2)
	for _, ev := range out {
		assert.Empty(t, ev.Merged)
	}
}

func TestDispatcher_DevnodeFilterDropsDeniedKernels(t *testing.T) {
	cfg := &Config{DevnodeRules: []DevnodeRule{{Pattern: "loop*", Deny: true}}}
	snapshot := []*Event{
		testEvent(ActionAdd, "loop0", ""),
		testEvent(ActionAdd, "sda", ""),
	}
	out := runScenario(t, cfg, snapshot)
	require.Len(t, out, 1)
	assert.Equal(t, "sda", out[0].Kernel)
}

func TestDispatcher_RunServicesAndReleasesEvents(t *testing.T) {
	q := newQueue()
	store := &ConfigStore{current: mergingConfig()}
	d := newDispatcher(q, store, noopMetrics{})

	released := make(chan string, 4)
	ev1 := testEvent(ActionAdd, "sda", "W")
	ev1.handle = releaseTrackingHandle{name: "sda", ch: released}
	ev2 := testEvent(ActionAdd, "sda", "W")
	ev2.handle = releaseTrackingHandle{name: "sda-dup", ch: released}

	serviced := make(chan *Event, 1)
	trigger := func(ev *Event) error {
		serviced <- ev
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, trigger) }()

	q.AppendBatch([]*Event{ev1, ev2})

	select {
	case ev := <-serviced:
		assert.Equal(t, "sda", ev.Kernel)
		require.Len(t, ev.Merged, 1)
	case <-time.After(time.Second):
		t.Fatal("trigger was never called")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("handle was never released")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type releaseTrackingHandle struct {
	name string
	ch   chan string
}

func (h releaseTrackingHandle) Release() { h.ch <- h.name }

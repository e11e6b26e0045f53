package uevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_RequiresDevpathAndAction(t *testing.T) {
	raw := &FakeRaw{props: []EnvPair{{Key: "ACTION", Value: "add"}}}
	_, ok := newEvent(raw, rawHandle{raw})
	assert.False(t, ok)

	raw = &FakeRaw{props: []EnvPair{
		{Key: "DEVPATH", Value: "/devices/pci0000:00/0000:00:1f.2/ata1/host0/target0:0:0/0:0:0:0/block/sda"},
		{Key: "ACTION", Value: "add"},
	}}
	ev, ok := newEvent(raw, rawHandle{raw})
	require.True(t, ok)
	assert.Equal(t, "sda", ev.Kernel)
	assert.Equal(t, ActionAdd, ev.Action)
}

func TestEvent_IsDM(t *testing.T) {
	assert.True(t, (&Event{Kernel: "dm-0"}).IsDM())
	assert.False(t, (&Event{Kernel: "sda"}).IsDM())
}

func TestEvent_ReleaseIsExactlyOncePerHandleIncludingMerged(t *testing.T) {
	released := make(chan string, 2)
	child := &Event{Kernel: "sda", handle: releaseTrackingHandle{name: "sda", ch: released}}
	parent := &Event{Kernel: "sdb", Merged: []*Event{child}, handle: releaseTrackingHandle{name: "sdb", ch: released}}

	parent.release()

	assert.Nil(t, parent.Merged)
	names := []string{<-released, <-released}
	assert.ElementsMatch(t, []string{"sda", "sdb"}, names)
}

func TestKernelOf(t *testing.T) {
	assert.Equal(t, "sda", kernelOf("/devices/pci0000:00/block/sda"))
	assert.Equal(t, "noSlash", kernelOf("noSlash"))
}

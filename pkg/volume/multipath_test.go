package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren/pkg/types"
	"github.com/cuemby/warren/pkg/uevent"
)

type noopHandle struct{}

func (noopHandle) Release() {}

func dmEvent(t *testing.T, action, kernel, wwid string) *uevent.Event {
	t.Helper()
	src := uevent.NewFakeSource()
	src.Push([]uevent.EnvPair{
		{Key: "DEVPATH", Value: "/devices/virtual/block/" + kernel},
		{Key: "ACTION", Value: action},
		{Key: "DM_UUID", Value: uevent.MpathUUIDPrefix + wwid},
	}, nil)
	raw, ok, err := src.Recv()
	require.NoError(t, err)
	require.True(t, ok)
	ev, built := uevent.NewEvent(raw, noopHandle{})
	require.True(t, built)
	return ev
}

func TestMultipathDriver_BindsAndResolvesOnAdd(t *testing.T) {
	d := NewMultipathDriver()
	require.NoError(t, d.OnEvent(dmEvent(t, "add", "dm-0", "36000abc123")))

	vol := &types.Volume{Name: "data", Options: map[string]string{"wwid": "mpath-36000abc123"}}
	path, err := d.Mount(vol)
	require.NoError(t, err)
	assert.Equal(t, "/dev/dm-0", path)
	assert.Equal(t, "/dev/dm-0", d.GetPath(vol))
}

func TestMultipathDriver_MountFailsBeforeBindingObserved(t *testing.T) {
	d := NewMultipathDriver()
	vol := &types.Volume{Name: "data", Options: map[string]string{"wwid": "mpath-unbound"}}
	_, err := d.Mount(vol)
	assert.Error(t, err)
}

func TestMultipathDriver_RemoveUnbindsDevice(t *testing.T) {
	d := NewMultipathDriver()
	require.NoError(t, d.OnEvent(dmEvent(t, "add", "dm-0", "36000abc123")))
	require.NoError(t, d.OnEvent(dmEvent(t, "remove", "dm-0", "36000abc123")))

	vol := &types.Volume{Name: "data", Options: map[string]string{"wwid": "mpath-36000abc123"}}
	_, err := d.Mount(vol)
	assert.Error(t, err)
}

func TestMultipathDriver_CreateRequiresWWIDOption(t *testing.T) {
	d := NewMultipathDriver()
	vol := &types.Volume{Name: "data"}
	assert.Error(t, d.Create(vol))

	vol.Options = map[string]string{"wwid": "mpath-x"}
	assert.NoError(t, d.Create(vol))
}

func TestMultipathDriver_NonDMEventsDoNotBind(t *testing.T) {
	d := NewMultipathDriver()
	src := uevent.NewFakeSource()
	src.Push([]uevent.EnvPair{
		{Key: "DEVPATH", Value: "/devices/pci0000/sda"},
		{Key: "ACTION", Value: "add"},
	}, nil)
	raw, ok, err := src.Recv()
	require.NoError(t, err)
	require.True(t, ok)
	ev, built := uevent.NewEvent(raw, noopHandle{})
	require.True(t, built)

	require.NoError(t, d.OnEvent(ev))
	assert.Empty(t, d.wwid)
}

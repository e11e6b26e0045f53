package volume

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren/pkg/log"
	"github.com/cuemby/warren/pkg/types"
	"github.com/cuemby/warren/pkg/uevent"
)

// MultipathDriver backs volumes onto multipath (dm-*) devices. Unlike
// LocalDriver, it does not create storage itself: a volume's backing device
// comes and goes as paths are added and removed underneath it, reported
// through OnEvent, which is wired as the trigger callback of a uevent
// dispatcher running in the same process.
type MultipathDriver struct {
	mu     sync.RWMutex
	wwid   map[string]string // wwid -> dm-* kernel name
	logger zerolog.Logger
}

// NewMultipathDriver creates a driver with no bound devices. Callers wire
// OnEvent into a uevent.Dispatcher (typically via uevent.NewPipeline) before
// any volume using this driver can mount.
func NewMultipathDriver() *MultipathDriver {
	return &MultipathDriver{
		wwid:   make(map[string]string),
		logger: log.WithComponent("volume-multipath"),
	}
}

// OnEvent is a uevent.TriggerFunc: it records dm-* devices appearing and
// disappearing so Mount/GetPath can resolve a volume's WWID to its current
// kernel name. Non-dm events (individual paths) are observed only for
// logging; binding happens at the WWID level.
func (d *MultipathDriver) OnEvent(ev *uevent.Event) error {
	if !ev.IsDM() {
		d.logger.Debug().
			Str("action", string(ev.Action)).
			Str("kernel", ev.Kernel).
			Int("merged", len(ev.Merged)).
			Msg("path event serviced")
		return nil
	}

	wwid, ok := uevent.GetDMStr(ev, "DM_UUID")
	if !ok || !uevent.IsMpath(ev) {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Action {
	case uevent.ActionRemove:
		delete(d.wwid, wwid)
		d.logger.Info().Str("wwid", wwid).Str("kernel", ev.Kernel).Msg("multipath device removed")
	default:
		d.wwid[wwid] = ev.Kernel
		d.logger.Info().Str("wwid", wwid).Str("kernel", ev.Kernel).Msg("multipath device bound")
	}
	return nil
}

// kernelFor returns the current dm-* kernel name bound to a volume's WWID.
func (d *MultipathDriver) kernelFor(volume *types.Volume) (string, bool) {
	wwid := volume.Options["wwid"]
	if wwid == "" {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	kernel, ok := d.wwid[wwid]
	return kernel, ok
}

// Create validates that the volume names a WWID; the backing device itself
// is provisioned externally (by whatever attaches the LUN to the host), not
// by this driver.
func (d *MultipathDriver) Create(volume *types.Volume) error {
	if volume.Options["wwid"] == "" {
		return fmt.Errorf("multipath volume %s: missing required option %q", volume.Name, "wwid")
	}
	volume.MountPath = d.GetPath(volume)
	return nil
}

// Delete is a no-op: removing a multipath volume does not tear down the
// underlying LUN, only Warren's record of it.
func (d *MultipathDriver) Delete(volume *types.Volume) error {
	return nil
}

// Mount resolves the volume's WWID to its current /dev/mapper path. It
// fails if no dm device has been observed for that WWID yet, which callers
// should treat as "not ready", not as a permanent error.
func (d *MultipathDriver) Mount(volume *types.Volume) (string, error) {
	kernel, ok := d.kernelFor(volume)
	if !ok {
		return "", fmt.Errorf("multipath volume %s: no device bound for wwid %s", volume.Name, volume.Options["wwid"])
	}
	return "/dev/" + kernel, nil
}

// Unmount is a no-op: the dm device persists independent of any one task's
// use of it.
func (d *MultipathDriver) Unmount(volume *types.Volume) error {
	return nil
}

// GetPath returns the volume's current backing path, or empty if its WWID
// has not bound to a device yet.
func (d *MultipathDriver) GetPath(volume *types.Volume) string {
	kernel, ok := d.kernelFor(volume)
	if !ok {
		return ""
	}
	return "/dev/" + kernel
}

package uevent

// prepare walks a snapshot in reverse, dropping events the devnode filter
// rejects and resolving WWID for events eligible to participate in merging.
// dm-* events are exempt from the devnode filter and never get a WWID
// resolved (they are never merge participants, only merge barriers).
//
// Returns the surviving snapshot, in original order, and the count of
// events dropped by the devnode filter.
func prepare(snapshot []*Event, cfg *Config) ([]*Event, int) {
	mergingEnabled := cfg.MergingEnabled()
	dropped := 0

	kept := make([]*Event, 0, len(snapshot))
	survivors := make([]bool, len(snapshot))
	for i := range survivors {
		survivors[i] = true
	}

	for i := len(snapshot) - 1; i >= 0; i-- {
		ev := snapshot[i]
		if ev.isDM() {
			continue
		}

		if !cfg.filterDevnode(ev.Kernel) {
			survivors[i] = false
			dropped++
			continue
		}

		if mergingEnabled {
			if key, ok := cfg.uidAttributeKey(ev.Kernel); ok {
				if v, present := GetEnv(ev, key); present {
					ev.WWID = v
				}
			}
		}
	}

	for i, ev := range snapshot {
		if survivors[i] {
			kept = append(kept, ev)
		} else {
			ev.release()
		}
	}
	return kept, dropped
}

package uevent

// mergePass walks the snapshot from the latest event backward, absorbing
// earlier events into later ones that share a WWID. It only runs when
// merging is enabled in config; callers skip the call entirely otherwise.
//
// For a given "later" event, the inner scan over preceding "earlier" events
// stops at the first one that:
//
//   - shares later's kernel name and is a dm-* event (a dm event is always a
//     merge barrier, and later itself is never scanned if it is dm-*);
//   - has no WWID on either side (nothing to merge on);
//   - shares later's WWID but with a differing, non-change action (an
//     add/remove transition on the same LUN is a causality barrier: the
//     history on either side of a path disappearing and reappearing must
//     not be coalesced together).
//
// Short of a stop, an earlier event is merged into later when both have the
// same non-empty WWID, the same action, that action is not "change", and
// earlier is not a dm-* event. Merged events are appended to later.Merged in
// the order they were absorbed (closest first) and removed from the
// snapshot; they are serviced as part of their parent, never on their own.
func mergePass(snapshot []*Event) ([]*Event, int) {
	keep := make([]bool, len(snapshot))
	for i := range keep {
		keep[i] = true
	}
	merged := 0

	for later := len(snapshot) - 1; later >= 0; later-- {
		lev := snapshot[later]
		if !keep[later] || lev.isDM() {
			continue
		}

		for earlier := later - 1; earlier >= 0; earlier-- {
			if !keep[earlier] {
				continue
			}
			eev := snapshot[earlier]

			if eev.isDM() {
				break
			}
			if eev.WWID == "" || lev.WWID == "" {
				break
			}
			sameWWID := eev.WWID == lev.WWID
			sameAction := eev.Action == lev.Action
			if sameWWID && !sameAction && eev.Action != ActionChange && lev.Action != ActionChange {
				break
			}

			if sameWWID && sameAction && eev.Action != ActionChange {
				lev.Merged = append(lev.Merged, eev)
				keep[earlier] = false
				merged++
			}
		}
	}

	kept := make([]*Event, 0, len(snapshot))
	for i, ev := range snapshot {
		if keep[i] {
			kept = append(kept, ev)
		}
	}
	return kept, merged
}

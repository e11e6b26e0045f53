package uevent

// filterPass walks the snapshot from the latest event backward; for each
// "later" event it removes any preceding "earlier" event that the later
// event's action renders moot:
//
//   - a later remove annihilates prior history for the same kernel name
//     (remove subsumption);
//   - a later add supersedes a preceding change for the same kernel name
//     (change-before-add);
//   - a later add supersedes a preceding remove for the same kernel name
//     (the path reappeared before the stale removal was ever serviced).
//
// dm-* events never trigger these rules as the "later" side, since they
// never participate in the coalescing algorithm, and they are never removed
// as the "earlier" side either (a filter rule only ever matches on
// later.kernel == earlier.kernel, and a non-dm later cannot share a kernel
// name with a dm earlier).
func filterPass(snapshot []*Event) ([]*Event, int) {
	keep := make([]bool, len(snapshot))
	for i := range keep {
		keep[i] = true
	}

	for later := len(snapshot) - 1; later >= 0; later-- {
		lev := snapshot[later]
		if !keep[later] {
			continue
		}
		if lev.isDM() {
			continue
		}

		for earlier := later - 1; earlier >= 0; earlier-- {
			if !keep[earlier] {
				continue
			}
			eev := snapshot[earlier]
			if eev.Kernel != lev.Kernel {
				continue
			}

			removeSubsumption := lev.Action == ActionRemove
			changeBeforeAdd := eev.Action == ActionChange && lev.Action == ActionAdd
			addSupersedesRemove := eev.Action == ActionRemove && lev.Action == ActionAdd

			if removeSubsumption || changeBeforeAdd || addSupersedesRemove {
				keep[earlier] = false
			}
		}
	}

	kept := make([]*Event, 0, len(snapshot))
	dropped := 0
	for i, ev := range snapshot {
		if keep[i] {
			kept = append(kept, ev)
		} else {
			ev.release()
			dropped++
		}
	}
	return kept, dropped
}

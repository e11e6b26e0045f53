//go:build linux

package uevent

import "golang.org/x/sys/unix"

// lockMemory locks the calling process's current and future memory pages in
// RAM, so page faults under memory pressure cannot delay the listener while
// it is draining a burst.
func lockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}

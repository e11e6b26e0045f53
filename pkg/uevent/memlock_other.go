//go:build !linux

package uevent

// lockMemory is a no-op outside Linux; Listener.Run logs and continues if
// the caller asked for it anyway.
func lockMemory() error {
	return errMemoryLockUnsupported
}

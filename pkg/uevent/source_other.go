//go:build !linux

package uevent

import "errors"

// OpenDefaultSource opens the platform's native uevent source. Path
// monitoring depends on Linux's kobject-uevent netlink socket and has no
// equivalent on other platforms.
func OpenDefaultSource() (Source, error) {
	return nil, errors.New("uevent: no native source available on this platform")
}

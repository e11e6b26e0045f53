//go:build linux

package uevent

// OpenDefaultSource opens the platform's native uevent source. On Linux this
// is the netlink kobject-uevent socket.
func OpenDefaultSource() (Source, error) {
	return OpenNetlinkSource()
}

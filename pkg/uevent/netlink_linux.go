//go:build linux

package uevent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// netlinkRecvBufTarget is the target receive-buffer size, in bytes,
	// for the kernel uevent socket. A large buffer absorbs bursts (e.g. a
	// SAN rescan producing hundreds of path events) without the kernel
	// dropping notifications before the listener can drain them.
	netlinkRecvBufTarget = 128 * 1024 * 1024

	// netlinkRecvMsgSize is large enough for any single kernel uevent
	// message; the kernel uevent ABI itself bounds message size well
	// below this.
	netlinkRecvMsgSize = 64 * 1024
)

// NetlinkSource is the default Source implementation on Linux: a raw
// AF_NETLINK/NETLINK_KOBJECT_UEVENT socket. It assumes nothing about the
// presence of libudev — the kernel's wire format
// ("ACTION@DEVPATH\x00KEY=VALUE\x00...\x00") is parsed directly, which is
// the one place this package's "external device-enumeration library"
// boundary becomes a concrete (if minimal) parser rather than a libudev
// binding, since none is available in this dependency tree.
type NetlinkSource struct {
	fd      int
	subbed  bool
	subsys  string
	devtype string
}

// OpenNetlinkSource opens and binds the kernel uevent netlink socket. It
// attempts to grow the receive buffer toward netlinkRecvBufTarget via
// SO_RCVBUFFORCE (falling back to the unprivileged SO_RCVBUF on failure) so
// the kernel has headroom to queue notifications ahead of the listener.
func OpenNetlinkSource() (*NetlinkSource, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("uevent: opening netlink socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUFFORCE, netlinkRecvBufTarget); err != nil {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, netlinkRecvBufTarget)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("uevent: binding netlink socket: %w", err)
	}

	return &NetlinkSource{fd: fd}, nil
}

// Subscribe implements Source. The kernel uevent multicast group carries
// every subsystem; filtering to subsystem/devtype happens on recv.
func (s *NetlinkSource) Subscribe(subsystem, devtype string) error {
	s.subsys = subsystem
	s.devtype = devtype
	s.subbed = true
	return nil
}

// Poll implements Source using ppoll on the underlying file descriptor.
func (s *NetlinkSource) Poll(ctx context.Context, timeout time.Duration) (PollResult, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	timeoutMs := int(timeout / time.Millisecond)
	if timeout < 0 {
		timeoutMs = -1
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return PollInterrupted, nil
		}
		return 0, fmt.Errorf("uevent: polling netlink socket: %w", err)
	}
	if ctx.Err() != nil {
		return PollInterrupted, nil
	}
	if n == 0 {
		return PollTimeout, nil
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		return PollReady, nil
	}
	return PollTimeout, nil
}

// Recv implements Source, parsing one netlink datagram into a netlinkRaw.
func (s *NetlinkSource) Recv() (RawEvent, bool, error) {
	buf := make([]byte, netlinkRecvMsgSize)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("uevent: receiving netlink datagram: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	pairs := parseUevent(buf[:n])
	if s.subsys != "" && !matchesSubsystem(pairs, s.subsys, s.devtype) {
		return nil, false, nil
	}
	return &netlinkRaw{props: pairs}, true, nil
}

// Close implements Source.
func (s *NetlinkSource) Close() error {
	return unix.Close(s.fd)
}

// netlinkRaw is the RawEvent produced by NetlinkSource. It holds no kernel
// resource beyond the parsed byte slice, so Release is a no-op; it exists so
// callers uniformly go through the RawEvent/SourceHandle release discipline
// regardless of which Source produced the notification.
type netlinkRaw struct {
	props []EnvPair
}

func (r *netlinkRaw) Properties() []EnvPair { return r.props }
func (r *netlinkRaw) Release()              {}

// parseUevent splits a raw kernel uevent datagram into key/value pairs. The
// wire format is a sequence of NUL-terminated strings; the first is either
// "ACTION@DEVPATH" (the libudev-monitor framing) or a raw "ACTION=..."
// field depending on socket family — both are handled by splitting every
// field on its first "=" and ignoring fields that don't contain one (such as
// the leading "ACTION@DEVPATH" header line, whose DEVPATH/ACTION content is
// also carried, redundantly, as ordinary KEY=VALUE fields by the kernel).
func parseUevent(buf []byte) []EnvPair {
	var pairs []EnvPair
	for _, field := range strings.Split(string(buf), "\x00") {
		if field == "" {
			continue
		}
		idx := strings.IndexByte(field, '=')
		if idx <= 0 {
			continue
		}
		pairs = append(pairs, EnvPair{Key: field[:idx], Value: field[idx+1:]})
	}
	return pairs
}

func matchesSubsystem(pairs []EnvPair, subsystem, devtype string) bool {
	var gotSubsystem, gotDevtype string
	for _, p := range pairs {
		switch p.Key {
		case "SUBSYSTEM":
			gotSubsystem = p.Value
		case "DEVTYPE":
			gotDevtype = p.Value
		}
	}
	if gotSubsystem != subsystem {
		return false
	}
	if devtype != "" && gotDevtype != devtype {
		return false
	}
	return true
}

package proxy

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/mickamy/sql-tap-proxy/endpoint"
)

// The loop drives its own non-blocking sockets straight through
// golang.org/x/sys/unix rather than net.Conn: net.Conn's blocking Read/Write
// is serviced by the Go runtime's own internal poller, which would fight
// the single readiness.Set this package owns. Talking to raw fds keeps the
// loop the sole owner of "what's ready right now", exactly like the
// Python original talking straight to the socket module.

func sockaddrFor(e endpoint.Endpoint) (unix.Sockaddr, int, error) {
	addr, err := net.ResolveIPAddr("ip", e.Host)
	if err != nil {
		return nil, 0, fmt.Errorf("proxy: resolve %q: %w", e.Host, err)
	}

	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: int(e.Port)}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}

	sa := &unix.SockaddrInet6{Port: int(e.Port)}
	copy(sa.Addr[:], addr.IP.To16())
	return sa, unix.AF_INET6, nil
}

// listenSocket opens, binds and starts listening on e, returning a
// non-blocking fd ready to be registered for readiness.
func listenSocket(e endpoint.Endpoint) (int, error) {
	sa, family, err := sockaddrFor(e)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("proxy: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("proxy: setsockopt SO_REUSEADDR: %w", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("proxy: bind %s: %w", e, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("proxy: listen %s: %w", e, err)
	}

	return fd, nil
}

// acceptSocket accepts one pending connection from a listening fd as
// non-blocking.
func acceptSocket(listenFd int) (int, error) {
	fd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("proxy: accept: %w", err)
	}
	return fd, nil
}

// dialSocket opens a non-blocking socket and starts (but does not wait to
// complete) a connect to e. A still-in-progress or ultimately failed
// connect is not reported here: it surfaces later as a broken pipe on the
// first write, exactly as spec.md describes for UpstreamConnectFailed.
func dialSocket(e endpoint.Endpoint) (int, error) {
	sa, family, err := sockaddrFor(e)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("proxy: socket: %w", err)
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("proxy: connect %s: %w", e, err)
	}

	return fd, nil
}

// readSocket reads up to len(buf) bytes. It is only ever called once
// readiness has reported the fd readable.
func readSocket(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, fmt.Errorf("proxy: read: %w", err)
	}
	return n, nil
}

// writeSocket writes as much of buf as the kernel will currently accept. A
// broken peer is reported as ErrBrokenPipe so the loop can apply the
// pipe-broken cleanup rule regardless of which specific errno the platform
// raised (EPIPE, ECONNRESET, ECONNREFUSED for a never-connected upstream).
func writeSocket(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		switch err {
		case unix.EPIPE, unix.ECONNRESET, unix.ECONNREFUSED, unix.ENOTCONN:
			return 0, fmt.Errorf("%w: %v", ErrBrokenPipe, err)
		default:
			return 0, fmt.Errorf("proxy: write: %w", err)
		}
	}
	return n, nil
}

func closeSocket(fd int) {
	_ = unix.Shutdown(fd, unix.SHUT_RDWR)
	_ = unix.Close(fd)
}

// shutdownWrite propagates a half-close onward: fd stops accepting further
// writes from us and the peer sees EOF on its next read, but fd stays open
// and readable so a reply already in flight still comes through.
func shutdownWrite(fd int) {
	_ = unix.Shutdown(fd, unix.SHUT_WR)
}

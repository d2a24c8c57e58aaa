package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/giantswarm/enginectl/internal/sentinel"
)

// ErrPortInUse is returned when the requested listen address is already bound.
const ErrPortInUse = sentinel.Error("port already in use")

// CheckPortFree briefly binds host:port and releases it. It returns
// ErrPortInUse when another socket holds the address. Other bind failures,
// such as a host that is not local, are returned as is.
func CheckPortFree(host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("listen %s: %w", addr, ErrPortInUse)
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if err := l.Close(); err != nil {
		return fmt.Errorf("close probe listener on %s: %w", addr, err)
	}
	return nil
}

// ProbeHost returns the host a local client should dial to reach a server
// listening on host. Wildcard and empty hosts map to the IPv4 loopback.
func ProbeHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	default:
		return host
	}
}

// FreePort asks the kernel for a free TCP port on the loopback interface.
// The port is released before FreePort returns, so another process may take
// it in the meantime.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("listen on tcp address: %w", err)
	}
	defer l.Close() //nolint:errcheck // the port number is all that is needed
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected address type: %T", l.Addr())
	}
	return tcpAddr.Port, nil
}

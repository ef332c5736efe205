//go:build linux

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

func CreateNonblockingSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	return fd, utils.SysError("socket", err)
}

func Bind(fd int, sa unix.Sockaddr) error {
	return utils.SysError("bind", unix.Bind(fd, sa))
}

func Listen(fd int) error {
	return utils.SysError("listen", unix.Listen(fd, unix.SOMAXCONN))
}

// Accept returns a non-blocking, close-on-exec connection fd. The error is
// the raw errno so callers can classify it.
func Accept(fd int) (int, unix.Sockaddr, error) {
	return unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}

// Connect returns the raw errno for classification by the caller.
func Connect(fd int, sa unix.Sockaddr) error {
	return unix.Connect(fd, sa)
}

func ShutdownWrite(fd int) error {
	return utils.SysError("shutdown", unix.Shutdown(fd, unix.SHUT_WR))
}

func boolToInt(on bool) int {
	if on {
		return 1
	}
	return 0
}

func SetTcpNoDelay(fd int, on bool) error {
	return utils.SysError("setsockopt", unix.SetsockoptInt(fd, IPPROTO_TCP, TCP_NODELAY, boolToInt(on)))
}

func SetReuseAddr(fd int, on bool) error {
	return utils.SysError("setsockopt", unix.SetsockoptInt(fd, SOL_SOCKET, SO_REUSEADDR, boolToInt(on)))
}

func SetReusePort(fd int, on bool) error {
	return utils.SysError("setsockopt", unix.SetsockoptInt(fd, SOL_SOCKET, SO_REUSEPORT, boolToInt(on)))
}

func SetKeepAliveOn(fd int, on bool) error {
	return utils.SysError("setsockopt", unix.SetsockoptInt(fd, SOL_SOCKET, SO_KEEPALIVE, boolToInt(on)))
}

// SocketError returns the pending SO_ERROR of fd, or the getsockopt errno.
func SocketError(fd int) unix.Errno {
	v, err := unix.GetsockoptInt(fd, SOL_SOCKET, SO_ERROR)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return errno
		}
		return unix.EINVAL
	}
	return unix.Errno(v)
}

func LocalSockaddr(fd int) (unix.Sockaddr, error) {
	sa, err := unix.Getsockname(fd)
	return sa, utils.SysError("getsockname", err)
}

func PeerSockaddr(fd int) (unix.Sockaddr, error) {
	sa, err := unix.Getpeername(fd)
	return sa, utils.SysError("getpeername", err)
}

// IsSelfConnect reports whether a loopback connect ended up connected to itself.
func IsSelfConnect(fd int) bool {
	local, err := unix.Getsockname(fd)
	if err != nil {
		return false
	}
	peer, err := unix.Getpeername(fd)
	if err != nil {
		return false
	}
	switch l := local.(type) {
	case *unix.SockaddrInet4:
		p, ok := peer.(*unix.SockaddrInet4)
		return ok && l.Port == p.Port && l.Addr == p.Addr
	case *unix.SockaddrInet6:
		p, ok := peer.(*unix.SockaddrInet6)
		return ok && l.Port == p.Port && l.Addr == p.Addr
	}
	return false
}

func OpenIdleFd() (int, error) {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	return fd, utils.SysError("open", err)
}

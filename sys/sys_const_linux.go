//go:build linux

package sys

import "golang.org/x/sys/unix"

const (
	TCP_KEEPINTVL = unix.TCP_KEEPINTVL
	TCP_KEEPIDLE  = unix.TCP_KEEPIDLE
	TCP_NODELAY   = unix.TCP_NODELAY
	SOL_SOCKET    = unix.SOL_SOCKET
	IPPROTO_TCP   = unix.IPPROTO_TCP
	SO_KEEPALIVE  = unix.SO_KEEPALIVE
	SO_REUSEADDR  = unix.SO_REUSEADDR
	SO_REUSEPORT  = unix.SO_REUSEPORT
	SO_ERROR      = unix.SO_ERROR
)

const (
	EAGAIN        = unix.EAGAIN
	EWOULDBLOCK   = unix.EWOULDBLOCK
	EINTR         = unix.EINTR
	EINPROGRESS   = unix.EINPROGRESS
	EISCONN       = unix.EISCONN
	EALREADY      = unix.EALREADY
	EADDRINUSE    = unix.EADDRINUSE
	EADDRNOTAVAIL = unix.EADDRNOTAVAIL
	ECONNREFUSED  = unix.ECONNREFUSED
	ENETUNREACH   = unix.ENETUNREACH
	EACCES        = unix.EACCES
	EPERM         = unix.EPERM
	EAFNOSUPPORT  = unix.EAFNOSUPPORT
	EBADF         = unix.EBADF
	EFAULT        = unix.EFAULT
	ENOTSOCK      = unix.ENOTSOCK
	ECONNRESET    = unix.ECONNRESET
	EPIPE         = unix.EPIPE
	EMFILE        = unix.EMFILE
	ENFILE        = unix.ENFILE
)

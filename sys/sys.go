package sys

import "golang.org/x/sys/unix"

func CloseFd(fd int) error {
	return unix.Close(fd)
}

func Readv(fd int, iovs [][]byte) (n int, err error) {
	n, err = unix.Readv(fd, iovs)
	if n < 0 {
		n = 0
	}
	return
}

func Write(fd int, p []byte) (n int, err error) {
	n, err = unix.Write(fd, p)
	if n < 0 {
		n = 0
	}
	return
}

// IsWouldBlock reports whether err only means the fd is not ready yet.
func IsWouldBlock(err error) bool {
	return err == EAGAIN || err == EWOULDBLOCK || err == EINTR
}

package socket

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/utils"
)

var syscallName string = "setsockopt"

// SetKeepAlivePeriod turns keep-alive on with secs as both the idle time and
// the probe interval.
func SetKeepAlivePeriod(fd, secs int) error {
	if secs <= 0 {
		return errors.New("invalid keep-alive time")
	}
	err := unix.SetsockoptInt(fd, sys.SOL_SOCKET, sys.SO_KEEPALIVE, 1)
	if err != nil {
		return utils.SysError(syscallName, err)
	}
	err = unix.SetsockoptInt(fd, sys.IPPROTO_TCP, sys.TCP_KEEPINTVL, secs)
	if err != nil {
		return utils.SysError(syscallName, err)
	}
	err = unix.SetsockoptInt(fd, sys.IPPROTO_TCP, sys.TCP_KEEPIDLE, secs)
	return utils.SysError(syscallName, err)
}

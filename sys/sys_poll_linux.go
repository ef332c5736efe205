//go:build linux

package sys

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

var ePool = &sync.Pool{New: func() any {
	return &unix.EpollEvent{}
}}

func eGet() *unix.EpollEvent {
	return ePool.Get().(*unix.EpollEvent)
}

func ePut(event *unix.EpollEvent) {
	ePool.Put(event)
}

func EpollCtlName(ctlAction int) string {
	switch ctlAction {
	case unix.EPOLL_CTL_ADD:
		return "epoll_ctl_add"
	case unix.EPOLL_CTL_MOD:
		return "epoll_ctl_mod"
	case unix.EPOLL_CTL_DEL:
		return "epoll_ctl_del"
	default:
		return "epoll_ctl"
	}
}

// EpollCtl applies ctlAction for fd with the given interest bits.
func EpollCtl(pollFd, fd, ctlAction int, evs uint32) (err error) {
	var event *unix.EpollEvent
	if ctlAction != unix.EPOLL_CTL_DEL {
		event = eGet()
		defer ePut(event)
		event.Fd, event.Events = int32(fd), evs
	}
	err = unix.EpollCtl(pollFd, ctlAction, fd, event)
	return utils.SysError(EpollCtlName(ctlAction), err)
}

func CreateEpoll() (int, error) {
	pollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	return pollFd, utils.SysError("epoll_create1", err)
}

func EpollWait(pollFd int, events []unix.EpollEvent, msec int) (int, error) {
	return unix.EpollWait(pollFd, events, msec)
}

func CreateEventFd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	return fd, utils.SysError("eventfd", err)
}

// Trigger adds one to an eventfd counter.
func Trigger(evFd int) error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	n, err := unix.Write(evFd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	if err == nil && n != len(b) {
		err = unix.EIO
	}
	return utils.SysError("eventfd_write", err)
}

// DrainCounter reads an eventfd or timerfd and returns the counter value.
func DrainCounter(fd int) (uint64, error) {
	var b [8]byte
	n, err := unix.Read(fd, b[:])
	if err != nil {
		return 0, utils.SysError("read", err)
	}
	if n != len(b) {
		return 0, utils.SysError("read", unix.EIO)
	}
	return binary.NativeEndian.Uint64(b[:]), nil
}

func CreateTimerFd() (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	return fd, utils.SysError("timerfd_create", err)
}

// ArmTimerFd programs a one-shot expiration d from now. A zero d disarms the fd,
// so callers clamp it to a positive floor first.
func ArmTimerFd(fd int, d time.Duration) error {
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	return utils.SysError("timerfd_settime", unix.TimerfdSettime(fd, 0, &spec, nil))
}

func DisarmTimerFd(fd int) error {
	spec := unix.ItimerSpec{}
	return utils.SysError("timerfd_settime", unix.TimerfdSettime(fd, 0, &spec, nil))
}

func Poll(fds []unix.PollFd, msec int) (int, error) {
	return unix.Poll(fds, msec)
}

package iface

import "golang.org/x/sys/unix"

// Event bits share values between epoll(7) and poll(2) on Linux.
const (
	NoneEvent  uint32 = 0
	ReadEvent  uint32 = unix.POLLIN | unix.POLLPRI
	WriteEvent uint32 = unix.POLLOUT

	EventIn    uint32 = unix.POLLIN
	EventPri   uint32 = unix.POLLPRI
	EventOut   uint32 = unix.POLLOUT
	EventErr   uint32 = unix.POLLERR
	EventHup   uint32 = unix.POLLHUP
	EventRdHup uint32 = unix.POLLRDHUP
	EventNval  uint32 = unix.POLLNVAL
)

// Registration states a Poller keeps in IChannel.Index.
const (
	IndexNew     = -1
	IndexAdded   = 1
	IndexDeleted = 2
)

const (
	PollTimeMs        = 10000
	InitEventListSize = 16
	DefaultHighWater  = 64 << 20
	MaxFrameLength    = 64 << 20
	PollerEnv         = "GKREACTOR_USE_POLL"
)

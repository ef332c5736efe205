//go:build linux

package poll

import (
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/utils"
)

type EPollPoller struct {
	pollFd    int                    // epoll file descriptor
	eventList []unix.EpollEvent      // ready events, grows when filled
	channels  map[int]iface.IChannel // fd -> channel, including deleted ones
}

func NewEPollPoller() (*EPollPoller, error) {
	pollFd, err := sys.CreateEpoll()
	if err != nil {
		return nil, err
	}
	return &EPollPoller{
		pollFd:    pollFd,
		eventList: make([]unix.EpollEvent, iface.InitEventListSize),
		channels:  make(map[int]iface.IChannel),
	}, nil
}

func (that *EPollPoller) Poll(timeoutMs int, active []iface.IChannel) (time.Time, []iface.IChannel) {
	n, err := sys.EpollWait(that.pollFd, that.eventList, timeoutMs)
	now := time.Now()
	if err != nil {
		if err != unix.EINTR {
			logging.Errorf("EPollPoller.Poll: %v", utils.SysError("epoll_wait", err))
		}
		return now, active
	}
	for i := 0; i < n; i++ {
		ev := &that.eventList[i]
		ch, ok := that.channels[int(ev.Fd)]
		if !ok {
			logging.Warnf("EPollPoller.Poll: event for unknown fd=%d", ev.Fd)
			continue
		}
		ch.SetRevents(ev.Events)
		active = append(active, ch)
	}
	if n == len(that.eventList) {
		that.eventList = make([]unix.EpollEvent, n<<1)
	}
	return now, active
}

func (that *EPollPoller) UpdateChannel(ch iface.IChannel) {
	fd := ch.GetFd()
	switch idx := ch.Index(); idx {
	case iface.IndexNew, iface.IndexDeleted:
		if idx == iface.IndexNew {
			if _, found := that.channels[fd]; found {
				logging.Fatalf("EPollPoller.UpdateChannel: fd=%d is already registered", fd)
			}
			that.channels[fd] = ch
		} else if !hasChannel(that.channels, ch) {
			logging.Fatalf("EPollPoller.UpdateChannel: deleted fd=%d is not owned by this channel", fd)
		}
		ch.SetIndex(iface.IndexAdded)
		that.update(unix.EPOLL_CTL_ADD, ch)
	default:
		if !hasChannel(that.channels, ch) || idx != iface.IndexAdded {
			logging.Fatalf("EPollPoller.UpdateChannel: fd=%d is in a bad state, index=%d", fd, idx)
		}
		if ch.IsNoneEvent() {
			that.update(unix.EPOLL_CTL_DEL, ch)
			ch.SetIndex(iface.IndexDeleted)
		} else {
			that.update(unix.EPOLL_CTL_MOD, ch)
		}
	}
}

func (that *EPollPoller) RemoveChannel(ch iface.IChannel) {
	fd := ch.GetFd()
	idx := ch.Index()
	if !hasChannel(that.channels, ch) {
		logging.Fatalf("EPollPoller.RemoveChannel: fd=%d is not registered", fd)
	}
	if !ch.IsNoneEvent() {
		logging.Fatalf("EPollPoller.RemoveChannel: fd=%d still has interest 0x%x", fd, ch.Events())
	}
	if idx != iface.IndexAdded && idx != iface.IndexDeleted {
		logging.Fatalf("EPollPoller.RemoveChannel: fd=%d has index=%d", fd, idx)
	}
	delete(that.channels, fd)
	if idx == iface.IndexAdded {
		that.update(unix.EPOLL_CTL_DEL, ch)
	}
	ch.SetIndex(iface.IndexNew)
}

func (that *EPollPoller) HasChannel(ch iface.IChannel) bool {
	return hasChannel(that.channels, ch)
}

func (that *EPollPoller) update(ctlAction int, ch iface.IChannel) {
	if err := sys.EpollCtl(that.pollFd, ch.GetFd(), ctlAction, ch.Events()); err != nil {
		if ctlAction == unix.EPOLL_CTL_DEL {
			logging.Errorf("EPollPoller.update fd=%d: %v", ch.GetFd(), err)
		} else {
			logging.Fatalf("EPollPoller.update fd=%d: %v", ch.GetFd(), err)
		}
	}
}

func (that *EPollPoller) Close() error {
	return utils.SysError("close", sys.CloseFd(that.pollFd))
}

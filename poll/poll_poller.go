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

// PollPoller is the poll(2) backend. A channel's index is its slot in pollFds;
// slots with no interest keep a negative fd so the kernel skips them.
type PollPoller struct {
	pollFds  []unix.PollFd
	channels map[int]iface.IChannel
}

func NewPollPoller() *PollPoller {
	return &PollPoller{channels: make(map[int]iface.IChannel)}
}

func (that *PollPoller) Poll(timeoutMs int, active []iface.IChannel) (time.Time, []iface.IChannel) {
	n, err := sys.Poll(that.pollFds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err != unix.EINTR {
			logging.Errorf("PollPoller.Poll: %v", utils.SysError("poll", err))
		}
		return now, active
	}
	for i := range that.pollFds {
		if n <= 0 {
			break
		}
		pfd := &that.pollFds[i]
		if pfd.Revents > 0 {
			n--
			ch, ok := that.channels[int(pfd.Fd)]
			if !ok {
				logging.Warnf("PollPoller.Poll: event for unknown fd=%d", pfd.Fd)
				continue
			}
			ch.SetRevents(uint32(uint16(pfd.Revents)))
			active = append(active, ch)
		}
	}
	return now, active
}

func (that *PollPoller) UpdateChannel(ch iface.IChannel) {
	fd := ch.GetFd()
	if ch.Index() < 0 {
		if _, found := that.channels[fd]; found {
			logging.Fatalf("PollPoller.UpdateChannel: fd=%d is already registered", fd)
		}
		that.pollFds = append(that.pollFds, unix.PollFd{Fd: int32(fd), Events: int16(ch.Events())})
		ch.SetIndex(len(that.pollFds) - 1)
		that.channels[fd] = ch
		return
	}
	idx := ch.Index()
	if !hasChannel(that.channels, ch) || idx >= len(that.pollFds) {
		logging.Fatalf("PollPoller.UpdateChannel: fd=%d is in a bad state, index=%d", fd, idx)
	}
	pfd := &that.pollFds[idx]
	pfd.Fd = int32(fd)
	pfd.Events = int16(ch.Events())
	pfd.Revents = 0
	if ch.IsNoneEvent() {
		pfd.Fd = int32(-fd - 1)
	}
}

func (that *PollPoller) RemoveChannel(ch iface.IChannel) {
	fd := ch.GetFd()
	idx := ch.Index()
	if !hasChannel(that.channels, ch) || idx < 0 || idx >= len(that.pollFds) {
		logging.Fatalf("PollPoller.RemoveChannel: fd=%d is not registered", fd)
	}
	if !ch.IsNoneEvent() {
		logging.Fatalf("PollPoller.RemoveChannel: fd=%d still has interest 0x%x", fd, ch.Events())
	}
	delete(that.channels, fd)
	last := len(that.pollFds) - 1
	if idx != last {
		moved := that.pollFds[last]
		that.pollFds[idx] = moved
		movedFd := int(moved.Fd)
		if movedFd < 0 {
			movedFd = -movedFd - 1
		}
		that.channels[movedFd].SetIndex(idx)
	}
	that.pollFds = that.pollFds[:last]
	ch.SetIndex(iface.IndexNew)
}

func (that *PollPoller) HasChannel(ch iface.IChannel) bool {
	return hasChannel(that.channels, ch)
}

func (that *PollPoller) Close() error {
	return nil
}

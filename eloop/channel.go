package eloop

import (
	"strconv"
	"strings"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/iface"
)

type EventCallback func()

type ReadEventCallback func(receiveTime time.Time)

/*
Channel binds one fd to its interest mask and callbacks. It never owns the fd.
All methods run on the owning loop's thread.
*/
type Channel struct {
	loop          *EventLoop
	fd            int
	events        uint32
	revents       uint32
	index         int
	logHup        bool
	alive         func() bool
	tied          bool
	eventHandling bool
	addedToLoop   bool

	readCallback  ReadEventCallback
	writeCallback EventCallback
	closeCallback EventCallback
	errorCallback EventCallback
}

func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{
		loop:   loop,
		fd:     fd,
		index:  iface.IndexNew,
		logHup: true,
	}
}

func (that *Channel) GetFd() int { return that.fd }

func (that *Channel) Events() uint32 { return that.events }

func (that *Channel) Revents() uint32 { return that.revents }

func (that *Channel) SetRevents(revents uint32) { that.revents = revents }

func (that *Channel) Index() int { return that.index }

func (that *Channel) SetIndex(idx int) { that.index = idx }

func (that *Channel) OwnerLoop() *EventLoop { return that.loop }

func (that *Channel) SetReadCallback(cb ReadEventCallback) { that.readCallback = cb }

func (that *Channel) SetWriteCallback(cb EventCallback) { that.writeCallback = cb }

func (that *Channel) SetCloseCallback(cb EventCallback) { that.closeCallback = cb }

func (that *Channel) SetErrorCallback(cb EventCallback) { that.errorCallback = cb }

// Tie makes HandleEvent drop events once alive reports false.
func (that *Channel) Tie(alive func() bool) {
	that.alive = alive
	that.tied = true
}

func (that *Channel) DoNotLogHup() { that.logHup = false }

func (that *Channel) IsNoneEvent() bool { return that.events == iface.NoneEvent }

func (that *Channel) IsReading() bool { return that.events&iface.ReadEvent != 0 }

func (that *Channel) IsWriting() bool { return that.events&iface.WriteEvent != 0 }

func (that *Channel) EnableReading() {
	that.events |= iface.ReadEvent
	that.update()
}

func (that *Channel) DisableReading() {
	that.events &^= iface.ReadEvent
	that.update()
}

func (that *Channel) EnableWriting() {
	that.events |= iface.WriteEvent
	that.update()
}

func (that *Channel) DisableWriting() {
	that.events &^= iface.WriteEvent
	that.update()
}

func (that *Channel) DisableAll() {
	that.events = iface.NoneEvent
	that.update()
}

func (that *Channel) update() {
	that.addedToLoop = true
	that.loop.UpdateChannel(that)
}

// Remove deregisters the channel; interest must already be empty.
func (that *Channel) Remove() {
	if !that.IsNoneEvent() {
		logging.Fatalf("Channel.Remove: fd=%d still has interest %s", that.fd, that.EventsString())
	}
	that.addedToLoop = false
	that.loop.RemoveChannel(that)
}

func (that *Channel) HandleEvent(receiveTime time.Time) {
	if that.tied && !that.alive() {
		return
	}
	that.handleEventWithGuard(receiveTime)
}

func (that *Channel) handleEventWithGuard(receiveTime time.Time) {
	that.eventHandling = true
	defer func() { that.eventHandling = false }()

	if that.revents&iface.EventHup != 0 && that.revents&iface.EventIn == 0 {
		if that.logHup {
			logging.Warnf("Channel.HandleEvent fd=%d POLLHUP", that.fd)
		}
		if that.closeCallback != nil {
			that.closeCallback()
		}
	}
	if that.revents&iface.EventNval != 0 {
		logging.Warnf("Channel.HandleEvent fd=%d POLLNVAL", that.fd)
	}
	if that.revents&(iface.EventErr|iface.EventNval) != 0 {
		if that.errorCallback != nil {
			that.errorCallback()
		}
	}
	if that.revents&(iface.EventIn|iface.EventPri|iface.EventRdHup) != 0 {
		if that.readCallback != nil {
			that.readCallback(receiveTime)
		}
	}
	if that.revents&iface.EventOut != 0 {
		if that.writeCallback != nil {
			that.writeCallback()
		}
	}
}

func (that *Channel) EventsString() string {
	return eventsToString(that.fd, that.events)
}

func (that *Channel) ReventsString() string {
	return eventsToString(that.fd, that.revents)
}

var eventNames = []struct {
	bit  uint32
	name string
}{
	{iface.EventIn, "IN"},
	{iface.EventPri, "PRI"},
	{iface.EventOut, "OUT"},
	{iface.EventHup, "HUP"},
	{iface.EventRdHup, "RDHUP"},
	{iface.EventErr, "ERR"},
	{iface.EventNval, "NVAL"},
}

func eventsToString(fd int, ev uint32) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(fd))
	sb.WriteString(": ")
	for _, e := range eventNames {
		if ev&e.bit != 0 {
			sb.WriteString(e.name)
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

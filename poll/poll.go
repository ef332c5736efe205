/*
Poller owns the set of registered channels of one event loop, waits for
readiness and reports which channels became ready. It is only ever touched
from the owning loop's thread.
*/
package poll

import (
	"os"
	"time"

	"github.com/moqsien/gkreactor/iface"
)

type Poller interface {
	// Poll blocks for at most timeoutMs and appends ready channels to active.
	Poll(timeoutMs int, active []iface.IChannel) (time.Time, []iface.IChannel)
	UpdateChannel(ch iface.IChannel)
	RemoveChannel(ch iface.IChannel)
	HasChannel(ch iface.IChannel) bool
	Close() error
}

// NewDefaultPoller picks the backend once; poll(2) is used when the
// environment variable GKREACTOR_USE_POLL is set, epoll otherwise.
func NewDefaultPoller() (Poller, error) {
	if _, ok := os.LookupEnv(iface.PollerEnv); ok {
		return NewPollPoller(), nil
	}
	return NewEPollPoller()
}

func hasChannel(channels map[int]iface.IChannel, ch iface.IChannel) bool {
	c, ok := channels[ch.GetFd()]
	return ok && c == ch
}

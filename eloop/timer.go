package eloop

import (
	"sync/atomic"
	"time"

	"github.com/moqsien/gkreactor/iface"
)

var numCreatedTimers atomic.Int64

type Timer struct {
	callback   iface.Functor
	expiration time.Time
	interval   time.Duration
	repeat     bool
	sequence   int64
}

func newTimer(cb iface.Functor, when time.Time, interval time.Duration) *Timer {
	return &Timer{
		callback:   cb,
		expiration: when,
		interval:   interval,
		repeat:     interval > 0,
		sequence:   numCreatedTimers.Add(1),
	}
}

func (that *Timer) run() { that.callback() }

func (that *Timer) Expiration() time.Time { return that.expiration }

func (that *Timer) Repeat() bool { return that.repeat }

func (that *Timer) Sequence() int64 { return that.sequence }

// restart computes the next expiration from now, not from the missed deadline.
func (that *Timer) restart(now time.Time) {
	if that.repeat {
		that.expiration = now.Add(that.interval)
	} else {
		that.expiration = time.Time{}
	}
}

func NumCreatedTimers() int64 { return numCreatedTimers.Load() }

// TimerID is an opaque handle used to cancel a timer. The zero value
// cancels nothing.
type TimerID struct {
	timer    *Timer
	sequence int64
}

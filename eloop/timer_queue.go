package eloop

import (
	"math"
	"time"

	"github.com/google/btree"
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/sys"
)

const (
	minTimerDelay = 100 * time.Microsecond
	btreeDegree   = 8
)

// timerEntry orders timers by expiration, ties broken by sequence.
type timerEntry struct {
	when     time.Time
	sequence int64
	timer    *Timer
}

func timerLess(a, b timerEntry) bool {
	if a.when.Equal(b.when) {
		return a.sequence < b.sequence
	}
	return a.when.Before(b.when)
}

/*
TimerQueue keeps pending timers in an ordered set and programs a timerfd to
the soonest expiration. Everything except AddTimer and Cancel runs on the
owning loop's thread.
*/
type TimerQueue struct {
	loop                 *EventLoop
	timerFd              int
	timerFdChannel       *Channel
	timers               *btree.BTreeG[timerEntry]
	activeTimers         map[TimerID]struct{}
	cancelingTimers      map[TimerID]struct{}
	callingExpiredTimers bool
	armedAt              time.Time
}

func newTimerQueue(loop *EventLoop) (*TimerQueue, error) {
	fd, err := sys.CreateTimerFd()
	if err != nil {
		return nil, err
	}
	that := &TimerQueue{
		loop:            loop,
		timerFd:         fd,
		timerFdChannel:  NewChannel(loop, fd),
		timers:          btree.NewG[timerEntry](btreeDegree, timerLess),
		activeTimers:    make(map[TimerID]struct{}),
		cancelingTimers: make(map[TimerID]struct{}),
	}
	that.timerFdChannel.SetReadCallback(that.handleRead)
	that.timerFdChannel.EnableReading()
	return that, nil
}

// AddTimer is safe to call from any goroutine.
func (that *TimerQueue) AddTimer(cb iface.Functor, when time.Time, interval time.Duration) TimerID {
	timer := newTimer(cb, when, interval)
	that.loop.RunInLoop(func() {
		that.addTimerInLoop(timer)
	})
	return TimerID{timer: timer, sequence: timer.sequence}
}

// Cancel is synchronous on the loop thread and asynchronous elsewhere.
func (that *TimerQueue) Cancel(id TimerID) {
	if id.timer == nil {
		return
	}
	that.loop.RunInLoop(func() {
		that.cancelInLoop(id)
	})
}

func (that *TimerQueue) Len() int {
	return that.timers.Len()
}

func (that *TimerQueue) addTimerInLoop(timer *Timer) {
	that.loop.AssertInLoopThread()
	if that.insert(timer) {
		that.resetTimerFd(timer.expiration)
	}
}

func (that *TimerQueue) cancelInLoop(id TimerID) {
	that.loop.AssertInLoopThread()
	if _, ok := that.activeTimers[id]; ok {
		that.timers.Delete(timerEntry{when: id.timer.expiration, sequence: id.sequence})
		delete(that.activeTimers, id)
	} else if that.callingExpiredTimers {
		that.cancelingTimers[id] = struct{}{}
	}
}

func (that *TimerQueue) handleRead(receiveTime time.Time) {
	that.loop.AssertInLoopThread()
	if _, err := sys.DrainCounter(that.timerFd); err != nil {
		logging.Errorf("TimerQueue.handleRead: %v", err)
	}
	now := time.Now()
	expired := that.getExpired(now)

	that.callingExpiredTimers = true
	clear(that.cancelingTimers)
	for _, e := range expired {
		e.timer.run()
	}
	that.callingExpiredTimers = false

	that.reset(expired, now)
}

// getExpired removes every timer due at or before now, in expiration order.
func (that *TimerQueue) getExpired(now time.Time) []timerEntry {
	sentry := timerEntry{when: now, sequence: math.MaxInt64}
	var expired []timerEntry
	that.timers.AscendLessThan(sentry, func(e timerEntry) bool {
		expired = append(expired, e)
		return true
	})
	for _, e := range expired {
		that.timers.Delete(e)
		delete(that.activeTimers, TimerID{timer: e.timer, sequence: e.sequence})
	}
	return expired
}

func (that *TimerQueue) reset(expired []timerEntry, now time.Time) {
	for _, e := range expired {
		id := TimerID{timer: e.timer, sequence: e.sequence}
		if _, canceled := that.cancelingTimers[id]; e.timer.repeat && !canceled {
			e.timer.restart(now)
			that.insert(e.timer)
		}
	}
	if next, ok := that.timers.Min(); ok {
		that.resetTimerFd(next.when)
	} else {
		that.disarm()
	}
}

func (that *TimerQueue) insert(timer *Timer) (earliestChanged bool) {
	entry := timerEntry{when: timer.expiration, sequence: timer.sequence, timer: timer}
	first, ok := that.timers.Min()
	earliestChanged = !ok || timerLess(entry, first)
	that.timers.ReplaceOrInsert(entry)
	that.activeTimers[TimerID{timer: timer, sequence: timer.sequence}] = struct{}{}
	return
}

func (that *TimerQueue) resetTimerFd(when time.Time) {
	d := time.Until(when)
	if d < minTimerDelay {
		d = minTimerDelay
	}
	if err := sys.ArmTimerFd(that.timerFd, d); err != nil {
		logging.Errorf("TimerQueue.resetTimerFd: %v", err)
		return
	}
	that.armedAt = when
}

func (that *TimerQueue) disarm() {
	if err := sys.DisarmTimerFd(that.timerFd); err != nil {
		logging.Errorf("TimerQueue.disarm: %v", err)
		return
	}
	that.armedAt = time.Time{}
}

func (that *TimerQueue) close() {
	that.timerFdChannel.DisableAll()
	that.timerFdChannel.Remove()
	if err := sys.CloseFd(that.timerFd); err != nil {
		logging.Errorf("TimerQueue.close: %v", err)
	}
}

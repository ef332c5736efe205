package eloop

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/panjf2000/gnet/v2/pkg/logging"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/poll"
	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/utils/errs"
)

// loopsByThread maps an OS thread id to the loop created on it.
var loopsByThread sync.Map

/*
EventLoop is a reactor bound to the OS thread that created it. The creating
goroutine is locked to that thread until Close. Only RunInLoop, QueueInLoop,
Quit, Wakeup, the timer methods and QueueSize may be called from other
goroutines.
*/
type EventLoop struct {
	looping                atomic.Bool
	quit                   atomic.Bool
	callingPendingFunctors atomic.Bool
	eventHandling          bool
	iteration              int64
	tid                    int
	pollReturnTime         time.Time
	poller                 poll.Poller
	timerQueue             *TimerQueue
	wakeupFd               int
	wakeupChannel          *Channel
	activeChannels         []iface.IChannel
	currentActiveChannel   *Channel

	mutex           sync.Mutex
	pendingFunctors *queue.Queue
	spareFunctors   *queue.Queue
}

func NewEventLoop() (*EventLoop, error) {
	runtime.LockOSThread()
	tid := unix.Gettid()
	that := &EventLoop{
		tid:             tid,
		pendingFunctors: queue.New(),
		spareFunctors:   queue.New(),
	}
	if existing, loaded := loopsByThread.LoadOrStore(tid, that); loaded {
		logging.Fatalf("NewEventLoop: %v, thread %d already runs loop %p", errs.ErrLoopExists, tid, existing)
	}

	var err error
	cleanup := func() {
		loopsByThread.Delete(tid)
		runtime.UnlockOSThread()
	}
	if that.poller, err = poll.NewDefaultPoller(); err != nil {
		cleanup()
		return nil, err
	}
	if that.wakeupFd, err = sys.CreateEventFd(); err != nil {
		_ = that.poller.Close()
		cleanup()
		return nil, err
	}
	if that.timerQueue, err = newTimerQueue(that); err != nil {
		_ = sys.CloseFd(that.wakeupFd)
		_ = that.poller.Close()
		cleanup()
		return nil, err
	}
	that.wakeupChannel = NewChannel(that, that.wakeupFd)
	that.wakeupChannel.SetReadCallback(that.handleRead)
	that.wakeupChannel.EnableReading()
	logging.Debugf("EventLoop created %p in thread %d", that, tid)
	return that, nil
}

// GetEventLoopOfCurrentThread returns the loop owned by the calling OS
// thread, or nil.
func GetEventLoopOfCurrentThread() *EventLoop {
	if l, ok := loopsByThread.Load(unix.Gettid()); ok {
		return l.(*EventLoop)
	}
	return nil
}

// Loop blocks until Quit. It must run on the loop's thread.
func (that *EventLoop) Loop() {
	that.AssertInLoopThread()
	that.looping.Store(true)
	logging.Debugf("EventLoop %p start looping", that)

	for !that.quit.Load() {
		that.activeChannels = that.activeChannels[:0]
		that.pollReturnTime, that.activeChannels = that.poller.Poll(iface.PollTimeMs, that.activeChannels)
		that.iteration++
		that.eventHandling = true
		for _, ch := range that.activeChannels {
			that.currentActiveChannel = ch.(*Channel)
			that.currentActiveChannel.HandleEvent(that.pollReturnTime)
		}
		that.currentActiveChannel = nil
		that.eventHandling = false
		that.doPendingFunctors()
	}

	logging.Debugf("EventLoop %p stop looping", that)
	that.quit.Store(false)
	that.looping.Store(false)
}

// Quit is cooperative: the current iteration completes first.
func (that *EventLoop) Quit() {
	that.quit.Store(true)
	if !that.IsInLoopThread() {
		that.Wakeup()
	}
}

func (that *EventLoop) RunInLoop(f iface.Functor) {
	if that.IsInLoopThread() {
		f()
	} else {
		that.QueueInLoop(f)
	}
}

func (that *EventLoop) QueueInLoop(f iface.Functor) {
	that.mutex.Lock()
	that.pendingFunctors.Add(f)
	that.mutex.Unlock()

	if !that.IsInLoopThread() || that.callingPendingFunctors.Load() {
		that.Wakeup()
	}
}

func (that *EventLoop) QueueSize() int {
	that.mutex.Lock()
	defer that.mutex.Unlock()
	return that.pendingFunctors.Length()
}

func (that *EventLoop) RunAt(when time.Time, cb iface.Functor) TimerID {
	return that.timerQueue.AddTimer(cb, when, 0)
}

func (that *EventLoop) RunAfter(delay time.Duration, cb iface.Functor) TimerID {
	return that.RunAt(time.Now().Add(delay), cb)
}

func (that *EventLoop) RunEvery(interval time.Duration, cb iface.Functor) TimerID {
	return that.timerQueue.AddTimer(cb, time.Now().Add(interval), interval)
}

func (that *EventLoop) Cancel(id TimerID) {
	that.timerQueue.Cancel(id)
}

func (that *EventLoop) Wakeup() {
	if err := sys.Trigger(that.wakeupFd); err != nil {
		logging.Errorf("EventLoop.Wakeup: %v", err)
	}
}

func (that *EventLoop) UpdateChannel(ch *Channel) {
	if ch.OwnerLoop() != that {
		logging.Fatalf("EventLoop.UpdateChannel: fd=%d belongs to another loop", ch.GetFd())
	}
	that.AssertInLoopThread()
	that.poller.UpdateChannel(ch)
}

func (that *EventLoop) RemoveChannel(ch *Channel) {
	if ch.OwnerLoop() != that {
		logging.Fatalf("EventLoop.RemoveChannel: fd=%d belongs to another loop", ch.GetFd())
	}
	that.AssertInLoopThread()
	if that.eventHandling && that.currentActiveChannel != ch {
		for _, active := range that.activeChannels {
			if active == iface.IChannel(ch) {
				logging.Fatalf("EventLoop.RemoveChannel: fd=%d is pending dispatch", ch.GetFd())
			}
		}
	}
	that.poller.RemoveChannel(ch)
}

func (that *EventLoop) HasChannel(ch *Channel) bool {
	if ch.OwnerLoop() != that {
		logging.Fatalf("EventLoop.HasChannel: fd=%d belongs to another loop", ch.GetFd())
	}
	that.AssertInLoopThread()
	return that.poller.HasChannel(ch)
}

func (that *EventLoop) IsInLoopThread() bool {
	return unix.Gettid() == that.tid
}

func (that *EventLoop) AssertInLoopThread() {
	if !that.IsInLoopThread() {
		logging.Fatalf("EventLoop %p was created in thread %d, current thread is %d", that, that.tid, unix.Gettid())
	}
}

func (that *EventLoop) ThreadID() int { return that.tid }

func (that *EventLoop) Iteration() int64 { return that.iteration }

func (that *EventLoop) PollReturnTime() time.Time { return that.pollReturnTime }

func (that *EventLoop) EventHandling() bool { return that.eventHandling }

func (that *EventLoop) Looping() bool { return that.looping.Load() }

// Close releases the loop's fds and unlocks the OS thread. It must be called
// on the loop's thread after Loop has returned.
func (that *EventLoop) Close() {
	that.AssertInLoopThread()
	that.wakeupChannel.DisableAll()
	that.wakeupChannel.Remove()
	that.timerQueue.close()
	if err := sys.CloseFd(that.wakeupFd); err != nil {
		logging.Errorf("EventLoop.Close: %v", err)
	}
	if err := that.poller.Close(); err != nil {
		logging.Errorf("EventLoop.Close: %v", err)
	}
	loopsByThread.Delete(that.tid)
	runtime.UnlockOSThread()
}

func (that *EventLoop) handleRead(time.Time) {
	if _, err := sys.DrainCounter(that.wakeupFd); err != nil {
		logging.Errorf("EventLoop.handleRead: %v", err)
	}
}

func (that *EventLoop) doPendingFunctors() {
	that.callingPendingFunctors.Store(true)

	that.mutex.Lock()
	functors := that.pendingFunctors
	that.pendingFunctors = that.spareFunctors
	that.mutex.Unlock()

	for functors.Length() > 0 {
		functors.Remove().(iface.Functor)()
	}
	that.spareFunctors = functors

	that.callingPendingFunctors.Store(false)
}

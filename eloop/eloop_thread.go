package eloop

import (
	"sync"

	"github.com/panjf2000/gnet/v2/pkg/logging"
)

type ThreadInitCallback func(loop *EventLoop)

// runner starts task on its own goroutine.
type runner func(task func()) error

func goRunner(task func()) error {
	go task()
	return nil
}

// EventLoopThread runs one EventLoop on a dedicated goroutine that stays
// locked to its OS thread for the loop's whole life.
type EventLoopThread struct {
	name     string
	callback ThreadInitCallback
	run      runner

	mutex   sync.Mutex
	loop    *EventLoop
	exiting bool
	done    chan struct{}
}

func NewEventLoopThread(cb ThreadInitCallback, name string) *EventLoopThread {
	return newEventLoopThread(cb, name, goRunner)
}

func newEventLoopThread(cb ThreadInitCallback, name string, run runner) *EventLoopThread {
	return &EventLoopThread{
		name:     name,
		callback: cb,
		run:      run,
		done:     make(chan struct{}),
	}
}

func (that *EventLoopThread) Name() string { return that.name }

// StartLoop returns once the loop exists and is about to start looping.
func (that *EventLoopThread) StartLoop() (*EventLoop, error) {
	started := make(chan error, 1)
	err := that.run(func() {
		defer close(that.done)
		loop, err := NewEventLoop()
		if err != nil {
			started <- err
			return
		}
		if that.callback != nil {
			that.callback(loop)
		}
		that.mutex.Lock()
		that.loop = loop
		that.mutex.Unlock()
		started <- nil

		loop.Loop()
		logging.Debugf("EventLoopThread %s exits", that.name)

		that.mutex.Lock()
		that.loop = nil
		that.mutex.Unlock()
		loop.Close()
	})
	if err != nil {
		return nil, err
	}
	if err = <-started; err != nil {
		return nil, err
	}
	that.mutex.Lock()
	defer that.mutex.Unlock()
	return that.loop, nil
}

// Stop quits the loop and waits for its goroutine to finish.
func (that *EventLoopThread) Stop() {
	that.mutex.Lock()
	if that.exiting {
		that.mutex.Unlock()
		return
	}
	that.exiting = true
	loop := that.loop
	that.mutex.Unlock()

	if loop != nil {
		loop.Quit()
		<-that.done
	}
}

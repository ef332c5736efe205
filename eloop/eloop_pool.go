package eloop

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/balancer"
	"github.com/moqsien/gkreactor/iface"
)

type antsLogger struct{}

func (antsLogger) Printf(format string, args ...any) {
	logging.Infof(format, args...)
}

/*
EventLoopThreadPool owns the I/O loops of a server. With zero threads every
connection is served by the base loop.
*/
type EventLoopThreadPool struct {
	baseLoop   *EventLoop
	name       string
	started    bool
	numThreads int
	threads    []*EventLoopThread
	balancer   iface.IBalancer
	workers    *ants.Pool
}

func NewEventLoopThreadPool(baseLoop *EventLoop, name string) *EventLoopThreadPool {
	return &EventLoopThreadPool{
		baseLoop: baseLoop,
		name:     name,
		balancer: balancer.NewRoundRobin(),
	}
}

func (that *EventLoopThreadPool) SetThreadNum(numThreads int) { that.numThreads = numThreads }

func (that *EventLoopThreadPool) Name() string { return that.name }

func (that *EventLoopThreadPool) Started() bool { return that.started }

func (that *EventLoopThreadPool) Start(cb ThreadInitCallback) (err error) {
	if that.started {
		return nil
	}
	that.baseLoop.AssertInLoopThread()
	that.started = true

	if that.numThreads == 0 {
		if cb != nil {
			cb(that.baseLoop)
		}
		return nil
	}

	that.workers, err = ants.NewPool(that.numThreads,
		ants.WithLogger(antsLogger{}),
		ants.WithPanicHandler(func(p any) {
			logging.Errorf("EventLoopThreadPool %s: loop goroutine panicked: %v", that.name, p)
		}),
	)
	if err != nil {
		return err
	}
	for i := 0; i < that.numThreads; i++ {
		t := newEventLoopThread(cb, fmt.Sprintf("%s%d", that.name, i), that.workers.Submit)
		loop, err := t.StartLoop()
		if err != nil {
			that.Stop()
			return err
		}
		that.threads = append(that.threads, t)
		that.balancer.Register(loop)
	}
	return nil
}

// GetNextLoop picks I/O loops round-robin; it must be called on the base loop.
func (that *EventLoopThreadPool) GetNextLoop() *EventLoop {
	that.baseLoop.AssertInLoopThread()
	if next := that.balancer.Next(); next != nil {
		return next.(*EventLoop)
	}
	return that.baseLoop
}

func (that *EventLoopThreadPool) GetAllLoops() []*EventLoop {
	that.baseLoop.AssertInLoopThread()
	if that.balancer.Len() == 0 {
		return []*EventLoop{that.baseLoop}
	}
	loops := make([]*EventLoop, 0, that.balancer.Len())
	that.balancer.Iterator(func(_ int, val iface.IELoop) bool {
		loops = append(loops, val.(*EventLoop))
		return true
	})
	return loops
}

// Stop quits every I/O loop and waits for them.
func (that *EventLoopThreadPool) Stop() {
	for _, t := range that.threads {
		t.Stop()
	}
	that.threads = nil
	if that.workers != nil {
		that.workers.Release()
		that.workers = nil
	}
}

package eloop

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/iface"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop, err := NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	return loop
}

func TestLoopRegistry(t *testing.T) {
	loop := newTestLoop(t)
	if GetEventLoopOfCurrentThread() != loop {
		t.Fatal("loop not registered for its thread")
	}
	if !loop.IsInLoopThread() {
		t.Fatal("creator goroutine is not the loop thread")
	}
	loop.Close()
	if GetEventLoopOfCurrentThread() != nil {
		t.Fatal("loop still registered after Close")
	}
}

func TestRunInLoopFromOtherThread(t *testing.T) {
	th := NewEventLoopThread(nil, "cross")
	loop, err := th.StartLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer th.Stop()

	if loop.IsInLoopThread() {
		t.Fatal("test goroutine reported as loop thread")
	}
	inLoop := make(chan bool, 1)
	loop.RunInLoop(func() {
		inLoop <- loop.IsInLoopThread()
	})
	select {
	case ok := <-inLoop:
		if !ok {
			t.Fatal("functor ran off the loop thread")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("functor never ran")
	}
}

func TestQueueInLoopDuringPendingFunctors(t *testing.T) {
	th := NewEventLoopThread(nil, "nested")
	loop, err := th.StartLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer th.Stop()

	done := make(chan struct{})
	start := time.Now()
	loop.QueueInLoop(func() {
		loop.QueueInLoop(func() {
			close(done)
		})
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("functor queued by a functor waited for the poll timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatal("nested functor was not woken promptly")
	}
}

func TestQuitFromOtherThread(t *testing.T) {
	var loopCh = make(chan *EventLoop, 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		loop, err := NewEventLoop()
		if err != nil {
			loopCh <- nil
			return
		}
		loopCh <- loop
		loop.Loop()
		loop.Close()
	}()
	loop := <-loopCh
	if loop == nil {
		t.Fatal("loop creation failed")
	}
	time.Sleep(20 * time.Millisecond)
	loop.Quit()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Quit did not wake the blocked loop")
	}
}

func TestRunAfterAndQueueSize(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	fired := 0
	loop.RunAfter(5*time.Millisecond, func() {
		fired++
		loop.Quit()
	})
	loop.Loop()
	if fired != 1 {
		t.Fatalf("timer fired %d times", fired)
	}
	if loop.Iteration() == 0 || loop.PollReturnTime().IsZero() {
		t.Fatal("loop did not record an iteration")
	}
	if loop.QueueSize() != 0 {
		t.Fatalf("queue size %d after loop", loop.QueueSize())
	}
}

func TestChannelRegistration(t *testing.T) {
	loop := newTestLoop(t)
	defer loop.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	ch := NewChannel(loop, fds[0])
	got := make([]byte, 0, 4)
	ch.SetReadCallback(func(time.Time) {
		var b [16]byte
		n, _ := unix.Read(fds[0], b[:])
		got = append(got, b[:n]...)
		loop.Quit()
	})
	ch.EnableReading()
	if !loop.HasChannel(ch) || !ch.IsReading() || ch.IsWriting() {
		t.Fatalf("channel state after EnableReading: %s", ch.EventsString())
	}
	if _, err := unix.Write(fds[1], []byte("ping")); err != nil {
		t.Fatal(err)
	}
	loop.Loop()
	if string(got) != "ping" {
		t.Fatalf("read %q", got)
	}

	ch.DisableAll()
	if !loop.HasChannel(ch) || ch.Index() == iface.IndexNew {
		t.Fatalf("disabled channel should stay known to the poller, index=%d", ch.Index())
	}
	ch.Remove()
	if loop.HasChannel(ch) || ch.Index() != iface.IndexNew {
		t.Fatal("channel still registered after Remove")
	}
}

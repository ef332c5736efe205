package client

import (
	"net"
	"reflect"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/socket"
)

// closedPort returns a loopback address nothing listens on.
func closedPort(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return addr
}

func TestConnectorBackoff(t *testing.T) {
	loop, err := eloop.NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	c := NewConnector(loop, closedPort(t), 10*time.Millisecond, 25*time.Millisecond)
	var delays []time.Duration
	var stamps []time.Time
	c.onRetry = func(d time.Duration) {
		delays = append(delays, d)
		stamps = append(stamps, time.Now())
		if len(delays) == 4 {
			c.Stop()
			loop.Quit()
		}
	}
	c.SetNewConnectionCallback(func(fd int) {
		t.Error("connected to a closed port")
	})
	c.Start()
	loop.RunAfter(5*time.Second, loop.Quit)
	loop.Loop()

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("retry delays %v, want %v", delays, want)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < delays[i-1] {
			t.Fatalf("attempt %d came after %v, before the %v backoff", i+1, gap, delays[i-1])
		}
	}

	// let stopInLoop cancel the pending retry
	loop.RunAfter(50*time.Millisecond, loop.Quit)
	loop.Loop()
	if len(delays) != 4 {
		t.Fatalf("connector kept retrying after Stop: %v", delays)
	}

	delays = nil
	c.onRetry = func(d time.Duration) {
		delays = append(delays, d)
		c.Stop()
		loop.Quit()
	}
	c.Restart()
	loop.RunAfter(5*time.Second, loop.Quit)
	loop.Loop()
	if len(delays) != 1 || delays[0] != 10*time.Millisecond {
		t.Fatalf("Restart did not reset the backoff: %v", delays)
	}
}

func TestConnectorConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	loop, err := eloop.NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	c := NewConnector(loop, ln.Addr().(*net.TCPAddr), 0, 0)
	gotFd := -1
	c.SetNewConnectionCallback(func(fd int) {
		gotFd = fd
		loop.Quit()
	})
	c.Start()
	loop.RunAfter(3*time.Second, loop.Quit)
	loop.Loop()
	if gotFd < 0 {
		t.Fatal("no connection established")
	}
	sock := socket.New(gotFd)
	defer sock.Close()
	if sock.PeerAddr().Port != ln.Addr().(*net.TCPAddr).Port {
		t.Fatalf("connected to %s", sock.PeerAddr())
	}
	if c.retryDelay != DefaultInitRetryDelay || c.getState() != stateConnected {
		t.Fatalf("retryDelay=%v state=%d", c.retryDelay, c.getState())
	}
}

func TestRestartCancelsPendingRetry(t *testing.T) {
	loop, err := eloop.NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	c := NewConnector(loop, closedPort(t), 200*time.Millisecond, 10*time.Second)
	var delays []time.Duration
	c.onRetry = func(d time.Duration) { delays = append(delays, d) }
	c.Start()
	loop.RunAfter(20*time.Millisecond, c.Restart)
	loop.RunAfter(350*time.Millisecond, loop.Quit)
	loop.Loop()

	// the first chain's retry at 200ms is gone, only the restarted one fires
	want := []time.Duration{200 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("retry delays %v, want %v", delays, want)
	}
	c.Stop()
	loop.RunAfter(10*time.Millisecond, loop.Quit)
	loop.Loop()
}

func fdClosed(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == unix.EBADF
}

func TestConnectErrnoBuckets(t *testing.T) {
	loop, err := eloop.NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	cases := []struct {
		errno   unix.Errno
		state   connectorState
		retried bool
	}{
		{unix.EINPROGRESS, stateConnecting, false},
		{unix.ECONNREFUSED, stateDisconnected, true},
		{unix.ENETUNREACH, stateDisconnected, true},
		{unix.EACCES, stateDisconnected, false},
		{unix.EAFNOSUPPORT, stateDisconnected, false},
		{unix.ENOTSOCK, stateDisconnected, false},
	}
	for _, tc := range cases {
		tc := tc
		c := NewConnector(loop, closedPort(t), time.Hour, time.Hour)
		dialed := -1
		c.dial = func(fd int, sa unix.Sockaddr) error {
			dialed = fd
			return tc.errno
		}
		retried := false
		c.onRetry = func(time.Duration) { retried = true }
		c.Start()

		if dialed < 0 {
			t.Fatalf("%v: connect never attempted", tc.errno)
		}
		if c.getState() != tc.state || retried != tc.retried {
			t.Fatalf("%v: state=%d retried=%v", tc.errno, c.getState(), retried)
		}
		if tc.state == stateConnecting {
			if c.channel == nil || !c.channel.IsWriting() {
				t.Fatalf("%v: not waiting for writability", tc.errno)
			}
		} else if !fdClosed(dialed) {
			t.Fatalf("%v: fd %d leaked", tc.errno, dialed)
		}

		c.connect.Store(false)
		c.stopInLoop()
		if !fdClosed(dialed) {
			t.Fatalf("%v: fd %d open after stop", tc.errno, dialed)
		}
	}
}

func TestSelfConnectIsRetried(t *testing.T) {
	loop, err := eloop.NewEventLoop()
	if err != nil {
		t.Fatal(err)
	}
	defer loop.Close()

	c := NewConnector(loop, closedPort(t), time.Hour, time.Hour)
	var bindErr error
	c.dial = func(fd int, sa unix.Sockaddr) error {
		// sharing the destination as the source address yields a self connection
		if bindErr = unix.Bind(fd, sa); bindErr != nil {
			return bindErr
		}
		return unix.Connect(fd, sa)
	}
	retries := 0
	c.onRetry = func(time.Duration) {
		retries++
		loop.Quit()
	}
	c.SetNewConnectionCallback(func(fd int) {
		t.Error("self connection handed to the owner")
		unix.Close(fd)
		loop.Quit()
	})
	c.Start()
	loop.RunAfter(3*time.Second, loop.Quit)
	loop.Loop()

	if bindErr != nil {
		t.Fatalf("bind: %v", bindErr)
	}
	if retries != 1 || c.getState() != stateDisconnected {
		t.Fatalf("retries=%d state=%d", retries, c.getState())
	}
	c.Stop()
	loop.RunAfter(10*time.Millisecond, loop.Quit)
	loop.Loop()
}

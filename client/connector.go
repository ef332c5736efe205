package client

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/socket"
	"github.com/moqsien/gkreactor/sys"
)

const (
	DefaultInitRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay  = 30 * time.Second
)

type connectorState int32

const (
	stateDisconnected connectorState = iota
	stateConnecting
	stateConnected
)

// NewConnectionCallback receives the connected fd, which it now owns.
type NewConnectionCallback func(fd int)

/*
Connector keeps trying to establish one outgoing connection, backing off
exponentially between attempts. Start and Stop may be called from any
goroutine; everything else runs on the loop.
*/
type Connector struct {
	loop                  *eloop.EventLoop
	serverAddr            *net.TCPAddr
	connect               atomic.Bool
	state                 atomic.Int32
	channel               *eloop.Channel
	newConnectionCallback NewConnectionCallback
	initRetryDelay        time.Duration
	maxRetryDelay         time.Duration
	retryDelay            time.Duration
	retryTimer            eloop.TimerID
	dial                  func(fd int, sa unix.Sockaddr) error
	onRetry               func(delay time.Duration)
}

func NewConnector(loop *eloop.EventLoop, serverAddr *net.TCPAddr, initRetryDelay, maxRetryDelay time.Duration) *Connector {
	if initRetryDelay <= 0 {
		initRetryDelay = DefaultInitRetryDelay
	}
	if maxRetryDelay < initRetryDelay {
		maxRetryDelay = DefaultMaxRetryDelay
		if maxRetryDelay < initRetryDelay {
			maxRetryDelay = initRetryDelay
		}
	}
	return &Connector{
		loop:           loop,
		serverAddr:     serverAddr,
		initRetryDelay: initRetryDelay,
		maxRetryDelay:  maxRetryDelay,
		retryDelay:     initRetryDelay,
		dial:           sys.Connect,
	}
}

func (that *Connector) SetNewConnectionCallback(cb NewConnectionCallback) {
	that.newConnectionCallback = cb
}

func (that *Connector) ServerAddr() *net.TCPAddr { return that.serverAddr }

func (that *Connector) setState(s connectorState) { that.state.Store(int32(s)) }

func (that *Connector) getState() connectorState { return connectorState(that.state.Load()) }

func (that *Connector) Start() {
	that.connect.Store(true)
	that.loop.RunInLoop(that.startInLoop)
}

func (that *Connector) startInLoop() {
	that.loop.AssertInLoopThread()
	if that.getState() != stateDisconnected {
		logging.Warnf("Connector.startInLoop: already connecting to %s", socket.ToIpPort(that.serverAddr))
		return
	}
	if that.connect.Load() {
		that.doConnect()
	} else {
		logging.Debugf("Connector.startInLoop: do not connect")
	}
}

// Restart resets the backoff and connects again. It runs on the loop and
// supersedes any pending retry or attempt in flight.
func (that *Connector) Restart() {
	that.loop.AssertInLoopThread()
	that.loop.Cancel(that.retryTimer)
	that.retryTimer = eloop.TimerID{}
	if that.getState() == stateConnecting {
		_ = sys.CloseFd(that.removeAndResetChannel())
	}
	that.setState(stateDisconnected)
	that.retryDelay = that.initRetryDelay
	that.connect.Store(true)
	that.startInLoop()
}

func (that *Connector) Stop() {
	that.connect.Store(false)
	that.loop.QueueInLoop(that.stopInLoop)
}

func (that *Connector) stopInLoop() {
	that.loop.AssertInLoopThread()
	that.loop.Cancel(that.retryTimer)
	that.retryTimer = eloop.TimerID{}
	if that.getState() == stateConnecting {
		that.setState(stateDisconnected)
		fd := that.removeAndResetChannel()
		that.retry(fd)
	}
}

func (that *Connector) doConnect() {
	fd, err := sys.CreateNonblockingSocket(socket.Family(that.serverAddr))
	if err != nil {
		logging.Errorf("Connector.doConnect: %v", err)
		that.scheduleRetry()
		return
	}
	sa, err := socket.ToSockaddr(that.serverAddr)
	if err != nil {
		logging.Errorf("Connector.doConnect: %v", err)
		_ = sys.CloseFd(fd)
		return
	}
	var errno unix.Errno
	if err = that.dial(fd, sa); err != nil {
		var ok bool
		if errno, ok = err.(unix.Errno); !ok {
			logging.Errorf("Connector.doConnect: connect to %s: %v", socket.ToIpPort(that.serverAddr), err)
			_ = sys.CloseFd(fd)
			return
		}
	}
	switch errno {
	case 0, sys.EINPROGRESS, sys.EINTR, sys.EISCONN:
		that.connecting(fd)
	case sys.EAGAIN, sys.EADDRINUSE, sys.EADDRNOTAVAIL, sys.ECONNREFUSED, sys.ENETUNREACH:
		that.retry(fd)
	case sys.EACCES, sys.EPERM, sys.EAFNOSUPPORT, sys.EALREADY, sys.EBADF, sys.EFAULT, sys.ENOTSOCK:
		logging.Errorf("Connector.doConnect: connect to %s: %v", socket.ToIpPort(that.serverAddr), errno)
		_ = sys.CloseFd(fd)
	default:
		logging.Errorf("Connector.doConnect: unexpected error connecting to %s: %v", socket.ToIpPort(that.serverAddr), errno)
		_ = sys.CloseFd(fd)
	}
}

func (that *Connector) connecting(fd int) {
	that.setState(stateConnecting)
	that.channel = eloop.NewChannel(that.loop, fd)
	that.channel.SetWriteCallback(that.handleWrite)
	that.channel.SetErrorCallback(that.handleError)
	that.channel.EnableWriting()
}

// removeAndResetChannel deregisters the transient channel and returns its fd.
// The channel itself is dropped after the current dispatch.
func (that *Connector) removeAndResetChannel() int {
	ch := that.channel
	ch.DisableAll()
	ch.Remove()
	that.loop.QueueInLoop(func() { that.resetChannel(ch) })
	return ch.GetFd()
}

// resetChannel leaves a channel created by a newer attempt alone.
func (that *Connector) resetChannel(ch *eloop.Channel) {
	if that.channel == ch {
		that.channel = nil
	}
}

func (that *Connector) handleWrite() {
	logging.Debugf("Connector.handleWrite state=%d", that.getState())
	if that.getState() != stateConnecting {
		return
	}
	fd := that.removeAndResetChannel()
	if errno := sys.SocketError(fd); errno != 0 {
		logging.Warnf("Connector.handleWrite - SO_ERROR = %d %v", int(errno), errno)
		that.retry(fd)
	} else if sys.IsSelfConnect(fd) {
		logging.Warnf("Connector.handleWrite - self connect")
		that.retry(fd)
	} else {
		that.setState(stateConnected)
		if that.connect.Load() && that.newConnectionCallback != nil {
			that.newConnectionCallback(fd)
		} else {
			_ = sys.CloseFd(fd)
		}
	}
}

func (that *Connector) handleError() {
	logging.Errorf("Connector.handleError state=%d", that.getState())
	if that.getState() == stateConnecting {
		fd := that.removeAndResetChannel()
		errno := sys.SocketError(fd)
		logging.Debugf("Connector.handleError - SO_ERROR = %d %v", int(errno), errno)
		that.retry(fd)
	}
}

func (that *Connector) retry(fd int) {
	_ = sys.CloseFd(fd)
	that.setState(stateDisconnected)
	that.scheduleRetry()
}

func (that *Connector) scheduleRetry() {
	if !that.connect.Load() {
		logging.Debugf("Connector.retry: do not connect")
		return
	}
	logging.Infof("Connector.retry - retry connecting to %s in %v", socket.ToIpPort(that.serverAddr), that.retryDelay)
	if that.onRetry != nil {
		that.onRetry(that.retryDelay)
	}
	that.retryTimer = that.loop.RunAfter(that.retryDelay, that.startInLoop)
	that.retryDelay *= 2
	if that.retryDelay > that.maxRetryDelay {
		that.retryDelay = that.maxRetryDelay
	}
}

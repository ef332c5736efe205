package conn

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/socket"
)

/*
TcpConnection is one established TCP connection served by a single loop.
It is created by a server or client in the Connecting state and destroyed
with ConnectDestroyed once its owner has dropped it.
*/
type TcpConnection struct {
	loop      *eloop.EventLoop
	name      string
	state     atomic.Int32
	reading   bool
	destroyed atomic.Bool
	socket    *socket.Socket
	channel   *eloop.Channel
	localAddr *net.TCPAddr
	peerAddr  *net.TCPAddr

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	highWaterMarkCallback HighWaterMarkCallback
	closeCallback         CloseCallback
	highWaterMark         int

	inputBuffer  *buffer.Buffer
	outputBuffer *buffer.Buffer
	context      any
}

func NewTcpConnection(loop *eloop.EventLoop, name string, fd int, localAddr, peerAddr *net.TCPAddr) *TcpConnection {
	that := &TcpConnection{
		loop:               loop,
		name:               name,
		reading:            true,
		socket:             socket.New(fd),
		channel:            eloop.NewChannel(loop, fd),
		localAddr:          localAddr,
		peerAddr:           peerAddr,
		connectionCallback: DefaultConnectionCallback,
		messageCallback:    DefaultMessageCallback,
		highWaterMark:      iface.DefaultHighWater,
		inputBuffer:        buffer.New(),
		outputBuffer:       buffer.New(),
	}
	that.setState(Connecting)
	that.channel.SetReadCallback(that.handleRead)
	that.channel.SetWriteCallback(that.handleWrite)
	that.channel.SetCloseCallback(that.handleClose)
	that.channel.SetErrorCallback(that.handleError)
	that.socket.SetKeepAlive(true)
	logging.Debugf("TcpConnection.ctor[%s] fd=%d", name, fd)
	return that
}

func (that *TcpConnection) GetLoop() *eloop.EventLoop { return that.loop }

func (that *TcpConnection) Name() string { return that.name }

func (that *TcpConnection) GetFd() int { return that.socket.GetFd() }

func (that *TcpConnection) LocalAddr() *net.TCPAddr { return that.localAddr }

func (that *TcpConnection) PeerAddr() *net.TCPAddr { return that.peerAddr }

func (that *TcpConnection) State() StateE { return StateE(that.state.Load()) }

func (that *TcpConnection) StateString() string { return that.State().String() }

func (that *TcpConnection) setState(s StateE) { that.state.Store(int32(s)) }

func (that *TcpConnection) Connected() bool { return that.State() == Connected }

func (that *TcpConnection) Disconnected() bool { return that.State() == Disconnected }

func (that *TcpConnection) IsReading() bool { return that.reading }

func (that *TcpConnection) alive() bool { return !that.destroyed.Load() }

// InputBuffer and OutputBuffer may only be touched on the loop's thread.
func (that *TcpConnection) InputBuffer() *buffer.Buffer { return that.inputBuffer }

func (that *TcpConnection) OutputBuffer() *buffer.Buffer { return that.outputBuffer }

func (that *TcpConnection) SetContext(ctx any) { that.context = ctx }

func (that *TcpConnection) Context() any { return that.context }

func (that *TcpConnection) SetConnectionCallback(cb ConnectionCallback) {
	that.connectionCallback = cb
}

func (that *TcpConnection) SetMessageCallback(cb MessageCallback) { that.messageCallback = cb }

func (that *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	that.writeCompleteCallback = cb
}

// SetHighWaterMarkCallback fires cb each time the pending output grows
// across mark bytes.
func (that *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	that.highWaterMarkCallback = cb
	that.highWaterMark = mark
}

func (that *TcpConnection) SetCloseCallback(cb CloseCallback) { that.closeCallback = cb }

func (that *TcpConnection) SetTcpNoDelay(on bool) { that.socket.SetTcpNoDelay(on) }

func (that *TcpConnection) SetKeepAlive(on bool) { that.socket.SetKeepAlive(on) }

// SetKeepAlivePeriod uses period, in whole seconds, as both the idle time
// and the probe interval.
func (that *TcpConnection) SetKeepAlivePeriod(period time.Duration) error {
	return that.socket.SetKeepAlivePeriod(max(1, int(period/time.Second)))
}

// ConnectEstablished is called once by the owner, on the loop's thread.
func (that *TcpConnection) ConnectEstablished() {
	that.loop.AssertInLoopThread()
	if s := that.State(); s != Connecting {
		logging.Fatalf("TcpConnection.ConnectEstablished[%s] in state %s", that.name, s)
	}
	that.setState(Connected)
	that.channel.Tie(that.alive)
	that.channel.EnableReading()
	that.connectionCallback(that)
}

// ConnectDestroyed is the last call the owner makes. It deregisters the
// channel and closes the socket.
func (that *TcpConnection) ConnectDestroyed() {
	that.loop.AssertInLoopThread()
	if s := that.State(); s == Connected || s == Disconnecting {
		that.setState(Disconnected)
		that.channel.DisableAll()
		that.connectionCallback(that)
	}
	if that.loop.HasChannel(that.channel) {
		if !that.channel.IsNoneEvent() {
			that.channel.DisableAll()
		}
		that.channel.Remove()
	}
	that.destroyed.Store(true)
	if err := that.socket.Close(); err != nil {
		logging.Errorf("TcpConnection.ConnectDestroyed[%s]: %v", that.name, err)
	}
	logging.Debugf("TcpConnection.dtor[%s] fd=%d", that.name, that.GetFd())
}

func (that *TcpConnection) Shutdown() {
	if that.state.CompareAndSwap(int32(Connected), int32(Disconnecting)) {
		that.loop.RunInLoop(that.shutdownInLoop)
	}
}

func (that *TcpConnection) shutdownInLoop() {
	that.loop.AssertInLoopThread()
	if !that.destroyed.Load() && !that.channel.IsWriting() {
		that.socket.ShutdownWrite()
	}
}

// ForceClose schedules teardown on the loop. Repeated calls, or calls after
// teardown, do nothing.
func (that *TcpConnection) ForceClose() {
	if s := that.State(); s == Connected || s == Disconnecting {
		that.setState(Disconnecting)
		that.loop.QueueInLoop(that.forceCloseInLoop)
	}
}

func (that *TcpConnection) ForceCloseWithDelay(delay time.Duration) {
	if s := that.State(); s == Connected || s == Disconnecting {
		that.setState(Disconnecting)
		that.loop.RunAfter(delay, that.ForceClose)
	}
}

func (that *TcpConnection) forceCloseInLoop() {
	that.loop.AssertInLoopThread()
	if that.destroyed.Load() {
		return
	}
	if s := that.State(); s == Connected || s == Disconnecting {
		that.handleClose()
	}
}

func (that *TcpConnection) StartRead() {
	that.loop.RunInLoop(that.startReadInLoop)
}

func (that *TcpConnection) startReadInLoop() {
	that.loop.AssertInLoopThread()
	if !that.reading || !that.channel.IsReading() {
		that.channel.EnableReading()
		that.reading = true
	}
}

func (that *TcpConnection) StopRead() {
	that.loop.RunInLoop(that.stopReadInLoop)
}

func (that *TcpConnection) stopReadInLoop() {
	that.loop.AssertInLoopThread()
	if that.reading || that.channel.IsReading() {
		that.channel.DisableReading()
		that.reading = false
	}
}

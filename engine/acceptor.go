package engine

import (
	"net"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/socket"
	"github.com/moqsien/gkreactor/sys"
)

type NewConnectionCallback func(fd int, peerAddr *net.TCPAddr)

/*
Acceptor owns the listening socket of a TcpServer and accepts one
connection per readable event. A spare fd on /dev/null is kept so that the
backlog can still be drained when the process runs out of descriptors.
*/
type Acceptor struct {
	loop                  *eloop.EventLoop
	acceptSocket          *socket.Socket
	acceptChannel         *eloop.Channel
	newConnectionCallback NewConnectionCallback
	listening             bool
	idleFd                int
}

func NewAcceptor(loop *eloop.EventLoop, listenAddr *net.TCPAddr, reusePort bool) (*Acceptor, error) {
	sock, err := socket.NewNonblocking(listenAddr)
	if err != nil {
		return nil, err
	}
	sock.SetReuseAddr(true)
	sock.SetReusePort(reusePort)
	if err = sock.BindAddress(listenAddr); err != nil {
		_ = sock.Close()
		return nil, err
	}
	idleFd, err := sys.OpenIdleFd()
	if err != nil {
		_ = sock.Close()
		return nil, err
	}
	that := &Acceptor{
		loop:          loop,
		acceptSocket:  sock,
		acceptChannel: eloop.NewChannel(loop, sock.GetFd()),
		idleFd:        idleFd,
	}
	that.acceptChannel.SetReadCallback(that.handleRead)
	return that, nil
}

func (that *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	that.newConnectionCallback = cb
}

func (that *Acceptor) Listening() bool { return that.listening }

func (that *Acceptor) ListenAddr() *net.TCPAddr { return that.acceptSocket.LocalAddr() }

func (that *Acceptor) Listen() error {
	that.loop.AssertInLoopThread()
	if err := that.acceptSocket.Listen(); err != nil {
		return err
	}
	that.listening = true
	that.acceptChannel.EnableReading()
	return nil
}

func (that *Acceptor) handleRead(time.Time) {
	that.loop.AssertInLoopThread()
	connFd, peerAddr, err := that.acceptSocket.Accept()
	if err == nil {
		if that.newConnectionCallback != nil {
			that.newConnectionCallback(connFd, peerAddr)
		} else {
			_ = sys.CloseFd(connFd)
		}
		return
	}
	if sys.IsWouldBlock(err) || err == unix.ECONNABORTED {
		return
	}
	logging.Errorf("Acceptor.handleRead: %v", err)
	if err == sys.EMFILE || err == sys.ENFILE {
		_ = sys.CloseFd(that.idleFd)
		if fd, _, e := unix.Accept(that.acceptSocket.GetFd()); e == nil {
			_ = sys.CloseFd(fd)
		}
		if that.idleFd, err = sys.OpenIdleFd(); err != nil {
			logging.Errorf("Acceptor.handleRead: reopen idle fd: %v", err)
			that.idleFd = -1
		}
	}
}

func (that *Acceptor) Close() {
	that.loop.AssertInLoopThread()
	if that.loop.HasChannel(that.acceptChannel) {
		if !that.acceptChannel.IsNoneEvent() {
			that.acceptChannel.DisableAll()
		}
		that.acceptChannel.Remove()
	}
	that.listening = false
	if err := that.acceptSocket.Close(); err != nil {
		logging.Errorf("Acceptor.Close: %v", err)
	}
	if that.idleFd >= 0 {
		_ = sys.CloseFd(that.idleFd)
		that.idleFd = -1
	}
}

/*
Socket owns a stream socket fd and closes it exactly once.
*/
package socket

import (
	"net"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/sys"
)

type Socket struct {
	fd     int
	closed atomic.Bool
}

func New(fd int) *Socket {
	return &Socket{fd: fd}
}

// NewNonblocking creates a non-blocking TCP socket for addr's family.
func NewNonblocking(addr *net.TCPAddr) (*Socket, error) {
	fd, err := sys.CreateNonblockingSocket(Family(addr))
	if err != nil {
		return nil, err
	}
	return New(fd), nil
}

func (that *Socket) GetFd() int { return that.fd }

func (that *Socket) BindAddress(addr *net.TCPAddr) error {
	sa, err := ToSockaddr(addr)
	if err != nil {
		return err
	}
	return sys.Bind(that.fd, sa)
}

func (that *Socket) Listen() error {
	return sys.Listen(that.fd)
}

// Accept returns a non-blocking connection fd and the peer address. The
// error is the raw errno.
func (that *Socket) Accept() (int, *net.TCPAddr, error) {
	connFd, sa, err := sys.Accept(that.fd)
	if err != nil {
		return -1, nil, err
	}
	return connFd, FromSockaddr(sa), nil
}

func (that *Socket) ShutdownWrite() {
	if err := sys.ShutdownWrite(that.fd); err != nil {
		logging.Errorf("Socket.ShutdownWrite fd=%d: %v", that.fd, err)
	}
}

func (that *Socket) SetTcpNoDelay(on bool) {
	if err := sys.SetTcpNoDelay(that.fd, on); err != nil {
		logging.Errorf("Socket.SetTcpNoDelay fd=%d: %v", that.fd, err)
	}
}

func (that *Socket) SetReuseAddr(on bool) {
	if err := sys.SetReuseAddr(that.fd, on); err != nil {
		logging.Errorf("Socket.SetReuseAddr fd=%d: %v", that.fd, err)
	}
}

func (that *Socket) SetReusePort(on bool) {
	if err := sys.SetReusePort(that.fd, on); err != nil {
		logging.Errorf("Socket.SetReusePort fd=%d: %v", that.fd, err)
	}
}

func (that *Socket) SetKeepAlive(on bool) {
	if err := sys.SetKeepAliveOn(that.fd, on); err != nil {
		logging.Errorf("Socket.SetKeepAlive fd=%d: %v", that.fd, err)
	}
}

func (that *Socket) SetKeepAlivePeriod(secs int) error {
	return SetKeepAlivePeriod(that.fd, secs)
}

func (that *Socket) LocalAddr() *net.TCPAddr {
	sa, err := sys.LocalSockaddr(that.fd)
	if err != nil {
		logging.Errorf("Socket.LocalAddr fd=%d: %v", that.fd, err)
		return nil
	}
	return FromSockaddr(sa)
}

func (that *Socket) PeerAddr() *net.TCPAddr {
	sa, err := sys.PeerSockaddr(that.fd)
	if err != nil {
		logging.Errorf("Socket.PeerAddr fd=%d: %v", that.fd, err)
		return nil
	}
	return FromSockaddr(sa)
}

func (that *Socket) Close() error {
	if !that.closed.CompareAndSwap(false, true) {
		return nil
	}
	return sys.CloseFd(that.fd)
}

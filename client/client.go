package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/conn"
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/socket"
	"github.com/moqsien/gkreactor/sys"
)

/*
TcpClient owns at most one connection to a server and can reconnect after
it closes. The connection is guarded by a mutex so other goroutines may
read it.
*/
type TcpClient struct {
	loop      *eloop.EventLoop
	connector *Connector
	name      string
	opts      Options

	connectionCallback    conn.ConnectionCallback
	messageCallback       conn.MessageCallback
	writeCompleteCallback conn.WriteCompleteCallback

	retry      atomic.Bool
	connect    atomic.Bool
	nextConnId int

	mutex      sync.Mutex
	connection *conn.TcpConnection
}

func NewTcpClient(loop *eloop.EventLoop, serverAddr, name string, opts ...Options) (*TcpClient, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	addr, err := socket.ResolveTCPAddr(serverAddr)
	if err != nil {
		return nil, err
	}
	that := &TcpClient{
		loop:               loop,
		connector:          NewConnector(loop, addr, o.InitRetryDelay, o.MaxRetryDelay),
		name:               name,
		opts:               o,
		connectionCallback: conn.DefaultConnectionCallback,
		messageCallback:    conn.DefaultMessageCallback,
	}
	that.retry.Store(o.Retry)
	that.connector.SetNewConnectionCallback(that.newConnection)
	logging.Debugf("TcpClient[%s] - connector %p", name, that.connector)
	return that, nil
}

func (that *TcpClient) GetLoop() *eloop.EventLoop { return that.loop }

func (that *TcpClient) Name() string { return that.name }

func (that *TcpClient) Retry() bool { return that.retry.Load() }

func (that *TcpClient) EnableRetry() { that.retry.Store(true) }

func (that *TcpClient) Connection() *conn.TcpConnection {
	that.mutex.Lock()
	defer that.mutex.Unlock()
	return that.connection
}

func (that *TcpClient) SetConnectionCallback(cb conn.ConnectionCallback) {
	that.connectionCallback = cb
}

func (that *TcpClient) SetMessageCallback(cb conn.MessageCallback) { that.messageCallback = cb }

func (that *TcpClient) SetWriteCompleteCallback(cb conn.WriteCompleteCallback) {
	that.writeCompleteCallback = cb
}

func (that *TcpClient) Connect() {
	logging.Infof("TcpClient.Connect[%s] - connecting to %s", that.name, socket.ToIpPort(that.connector.ServerAddr()))
	that.connect.Store(true)
	that.connector.Start()
}

// Disconnect half-closes the current connection once its output drains.
func (that *TcpClient) Disconnect() {
	that.connect.Store(false)
	if c := that.Connection(); c != nil {
		c.Shutdown()
	}
}

// Stop gives up connecting; an established connection is left alone.
func (that *TcpClient) Stop() {
	that.connect.Store(false)
	that.connector.Stop()
}

// Close stops the client for good, force-closing any live connection.
func (that *TcpClient) Close() {
	that.connect.Store(false)
	that.retry.Store(false)
	that.loop.RunInLoop(func() {
		if c := that.Connection(); c != nil {
			c.SetCloseCallback(func(c *conn.TcpConnection) {
				that.mutex.Lock()
				that.connection = nil
				that.mutex.Unlock()
				that.loop.QueueInLoop(c.ConnectDestroyed)
			})
			c.ForceClose()
			return
		}
		that.connector.Stop()
	})
}

func (that *TcpClient) newConnection(fd int) {
	that.loop.AssertInLoopThread()
	peerAddr, localAddr := peerOf(fd), localOf(fd)
	that.nextConnId++
	connName := fmt.Sprintf("%s:%s#%d", that.name, socket.ToIpPort(peerAddr), that.nextConnId)

	c := conn.NewTcpConnection(that.loop, connName, fd, localAddr, peerAddr)
	c.SetConnectionCallback(that.connectionCallback)
	c.SetMessageCallback(that.messageCallback)
	c.SetWriteCompleteCallback(that.writeCompleteCallback)
	c.SetCloseCallback(that.removeConnection)
	if that.opts.TcpNoDelay {
		c.SetTcpNoDelay(true)
	}
	that.mutex.Lock()
	that.connection = c
	that.mutex.Unlock()
	c.ConnectEstablished()
}

func (that *TcpClient) removeConnection(c *conn.TcpConnection) {
	that.loop.AssertInLoopThread()
	that.mutex.Lock()
	that.connection = nil
	that.mutex.Unlock()

	that.loop.QueueInLoop(c.ConnectDestroyed)
	if that.retry.Load() && that.connect.Load() {
		logging.Infof("TcpClient.removeConnection[%s] - reconnecting to %s", that.name, socket.ToIpPort(that.connector.ServerAddr()))
		that.connector.Restart()
	}
}

func peerOf(fd int) *net.TCPAddr {
	sa, err := sys.PeerSockaddr(fd)
	if err != nil {
		logging.Errorf("TcpClient: %v", err)
		return nil
	}
	return socket.FromSockaddr(sa)
}

func localOf(fd int) *net.TCPAddr {
	sa, err := sys.LocalSockaddr(fd)
	if err != nil {
		logging.Errorf("TcpClient: %v", err)
		return nil
	}
	return socket.FromSockaddr(sa)
}

package engine

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
TcpServer accepts connections on its base loop and hands each one to an I/O
loop from its pool. The connection registry is only touched on the base loop.
*/
type TcpServer struct {
	loop       *eloop.EventLoop
	ipPort     string
	name       string
	opts       Options
	acceptor   *Acceptor
	threadPool *eloop.EventLoopThreadPool

	connectionCallback    conn.ConnectionCallback
	messageCallback       conn.MessageCallback
	writeCompleteCallback conn.WriteCompleteCallback
	highWaterMarkCallback conn.HighWaterMarkCallback
	threadInitCallback    eloop.ThreadInitCallback

	started     atomic.Bool
	nextConnId  int
	connections map[string]*conn.TcpConnection
}

func NewTcpServer(loop *eloop.EventLoop, listenAddr, name string, opts ...Options) (*TcpServer, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o = o.withDefaults()

	addr, err := socket.ResolveTCPAddr(listenAddr)
	if err != nil {
		return nil, err
	}
	acceptor, err := NewAcceptor(loop, addr, o.ReusePort)
	if err != nil {
		return nil, err
	}
	that := &TcpServer{
		loop:               loop,
		ipPort:             socket.ToIpPort(acceptor.ListenAddr()),
		name:               name,
		opts:               o,
		acceptor:           acceptor,
		threadPool:         eloop.NewEventLoopThreadPool(loop, name),
		connectionCallback: conn.DefaultConnectionCallback,
		messageCallback:    conn.DefaultMessageCallback,
		connections:        make(map[string]*conn.TcpConnection),
	}
	that.threadPool.SetThreadNum(o.NumOfLoops)
	acceptor.SetNewConnectionCallback(that.newConnection)
	return that, nil
}

func (that *TcpServer) IpPort() string { return that.ipPort }

func (that *TcpServer) Name() string { return that.name }

func (that *TcpServer) GetLoop() *eloop.EventLoop { return that.loop }

func (that *TcpServer) ThreadPool() *eloop.EventLoopThreadPool { return that.threadPool }

func (that *TcpServer) ListenAddr() *net.TCPAddr { return that.acceptor.ListenAddr() }

// SetThreadNum must be called before Start.
func (that *TcpServer) SetThreadNum(numThreads int) {
	if numThreads < 0 {
		numThreads = 0
	}
	that.threadPool.SetThreadNum(numThreads)
}

func (that *TcpServer) SetThreadInitCallback(cb eloop.ThreadInitCallback) {
	that.threadInitCallback = cb
}

func (that *TcpServer) SetConnectionCallback(cb conn.ConnectionCallback) {
	that.connectionCallback = cb
}

func (that *TcpServer) SetMessageCallback(cb conn.MessageCallback) { that.messageCallback = cb }

func (that *TcpServer) SetWriteCompleteCallback(cb conn.WriteCompleteCallback) {
	that.writeCompleteCallback = cb
}

func (that *TcpServer) SetHighWaterMarkCallback(cb conn.HighWaterMarkCallback, mark int) {
	that.highWaterMarkCallback = cb
	if mark > 0 {
		that.opts.HighWaterMark = mark
	}
}

// ConnectionCount must be called on the base loop.
func (that *TcpServer) ConnectionCount() int {
	that.loop.AssertInLoopThread()
	return len(that.connections)
}

// Start starts the I/O loops and begins listening. It runs on the base
// loop's thread; calling it again does nothing.
func (that *TcpServer) Start() error {
	if !that.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := that.threadPool.Start(that.threadInitCallback); err != nil {
		return err
	}
	if err := that.acceptor.Listen(); err != nil {
		return err
	}
	logging.Infof("TcpServer[%s] listening on %s with %d I/O loops", that.name, that.ipPort, len(that.threadPool.GetAllLoops()))
	return nil
}

func (that *TcpServer) newConnection(fd int, peerAddr *net.TCPAddr) {
	that.loop.AssertInLoopThread()
	ioLoop := that.threadPool.GetNextLoop()
	that.nextConnId++
	connName := fmt.Sprintf("%s-%s#%d", that.name, socket.ToIpPort(peerAddr), that.nextConnId)
	logging.Infof("TcpServer.newConnection[%s] - new connection [%s] from %s", that.name, connName, socket.ToIpPort(peerAddr))

	var localAddr *net.TCPAddr
	if sa, err := sys.LocalSockaddr(fd); err == nil {
		localAddr = socket.FromSockaddr(sa)
	} else {
		logging.Errorf("TcpServer.newConnection[%s]: %v", that.name, err)
	}

	c := conn.NewTcpConnection(ioLoop, connName, fd, localAddr, peerAddr)
	if that.opts.ConnKeepAlive > 0 {
		if err := c.SetKeepAlivePeriod(that.opts.ConnKeepAlive); err != nil {
			logging.Warnf("TcpServer.newConnection[%s]: %v", connName, err)
		}
	}
	that.connections[connName] = c
	c.SetConnectionCallback(that.connectionCallback)
	c.SetMessageCallback(that.messageCallback)
	c.SetWriteCompleteCallback(that.writeCompleteCallback)
	c.SetHighWaterMarkCallback(that.highWaterMarkCallback, that.opts.HighWaterMark)
	c.SetCloseCallback(that.removeConnection)
	if that.opts.TcpNoDelay {
		c.SetTcpNoDelay(true)
	}
	ioLoop.RunInLoop(c.ConnectEstablished)
}

// removeConnection runs on the connection's I/O loop.
func (that *TcpServer) removeConnection(c *conn.TcpConnection) {
	that.loop.RunInLoop(func() {
		that.removeConnectionInLoop(c)
	})
}

func (that *TcpServer) removeConnectionInLoop(c *conn.TcpConnection) {
	that.loop.AssertInLoopThread()
	logging.Infof("TcpServer.removeConnectionInLoop[%s] - connection %s", that.name, c.Name())
	delete(that.connections, c.Name())
	c.GetLoop().QueueInLoop(c.ConnectDestroyed)
}

// Stop closes the listener, destroys every remaining connection and stops
// the I/O loops. It runs on the base loop's thread.
func (that *TcpServer) Stop() {
	that.loop.AssertInLoopThread()
	that.acceptor.Close()

	var wg sync.WaitGroup
	for name, c := range that.connections {
		c := c // per-iteration copy (go 1.21 loop semantics)
		delete(that.connections, name)
		wg.Add(1)
		c.GetLoop().RunInLoop(func() {
			defer wg.Done()
			c.ConnectDestroyed()
		})
	}
	wg.Wait()
	that.threadPool.Stop()
	logging.Infof("TcpServer[%s] stopped", that.name)
}

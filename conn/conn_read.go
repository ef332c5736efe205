package conn

import (
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/sys"
)

func (that *TcpConnection) handleRead(receiveTime time.Time) {
	that.loop.AssertInLoopThread()
	n, err := that.inputBuffer.ReadFd(that.GetFd())
	switch {
	case err != nil:
		if sys.IsWouldBlock(err) {
			return
		}
		logging.Errorf("TcpConnection.handleRead[%s]: %v", that.name, err)
		that.handleClose()
	case n > 0:
		that.messageCallback(that, that.inputBuffer, receiveTime)
	default:
		that.handleClose()
	}
}

// handleClose tears the connection down at most once.
func (that *TcpConnection) handleClose() {
	that.loop.AssertInLoopThread()
	s := that.State()
	if that.destroyed.Load() || (s != Connected && s != Disconnecting) {
		return
	}
	logging.Debugf("TcpConnection.handleClose[%s] fd=%d state=%s", that.name, that.GetFd(), s)
	that.setState(Disconnected)
	that.channel.DisableAll()

	that.connectionCallback(that)
	if that.closeCallback != nil {
		that.closeCallback(that)
	}
}

func (that *TcpConnection) handleError() {
	errno := sys.SocketError(that.GetFd())
	logging.Errorf("TcpConnection.handleError[%s] - SO_ERROR = %d %v", that.name, int(errno), errno)
}

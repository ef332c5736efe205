package conn

import (
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/utils"
)

// Send is safe from any goroutine. Data sent while not connected is dropped.
func (that *TcpConnection) Send(data []byte) {
	if that.State() != Connected {
		logging.Debugf("TcpConnection.Send[%s]: dropped %d bytes in state %s", that.name, len(data), that.State())
		return
	}
	if that.loop.IsInLoopThread() {
		that.sendInLoop(data)
		return
	}
	cp := utils.CopyBytes(data)
	that.loop.RunInLoop(func() {
		that.sendInLoop(cp)
	})
}

func (that *TcpConnection) SendString(s string) {
	that.Send([]byte(s))
}

// SendBuffer sends and consumes buf's readable bytes.
func (that *TcpConnection) SendBuffer(buf *buffer.Buffer) {
	if that.State() != Connected {
		return
	}
	if that.loop.IsInLoopThread() {
		that.sendInLoop(buf.Peek())
		buf.RetrieveAll()
		return
	}
	cp := buf.RetrieveAsBytes(buf.ReadableBytes())
	that.loop.RunInLoop(func() {
		that.sendInLoop(cp)
	})
}

func (that *TcpConnection) sendInLoop(data []byte) {
	that.loop.AssertInLoopThread()
	if that.State() == Disconnected {
		logging.Warnf("TcpConnection.sendInLoop[%s]: disconnected, give up writing", that.name)
		return
	}
	var nwrote int
	remaining := len(data)
	faultError := false

	if !that.channel.IsWriting() && that.outputBuffer.ReadableBytes() == 0 {
		n, err := sys.Write(that.GetFd(), data)
		if err == nil {
			nwrote = n
			remaining -= n
			if remaining == 0 && that.writeCompleteCallback != nil {
				that.loop.QueueInLoop(func() { that.writeCompleteCallback(that) })
			}
		} else if !sys.IsWouldBlock(err) {
			logging.Errorf("TcpConnection.sendInLoop[%s]: %v", that.name, utils.SysError("write", err))
			faultError = true
			that.loop.QueueInLoop(that.handleClose)
		}
	}

	if !faultError && remaining > 0 {
		oldLen := that.outputBuffer.ReadableBytes()
		if oldLen < that.highWaterMark && oldLen+remaining >= that.highWaterMark && that.highWaterMarkCallback != nil {
			total := oldLen + remaining
			that.loop.QueueInLoop(func() { that.highWaterMarkCallback(that, total) })
		}
		that.outputBuffer.Append(data[nwrote:])
		if !that.channel.IsWriting() {
			that.channel.EnableWriting()
		}
	}
}

func (that *TcpConnection) handleWrite() {
	that.loop.AssertInLoopThread()
	if !that.channel.IsWriting() {
		logging.Debugf("TcpConnection.handleWrite[%s]: fd=%d is down, no more writing", that.name, that.GetFd())
		return
	}
	if _, err := that.outputBuffer.WriteFd(that.GetFd()); err != nil && !sys.IsWouldBlock(err) {
		logging.Errorf("TcpConnection.handleWrite[%s]: %v", that.name, utils.SysError("write", err))
		that.handleClose()
		return
	}
	if that.outputBuffer.ReadableBytes() == 0 {
		that.channel.DisableWriting()
		if that.writeCompleteCallback != nil {
			that.loop.QueueInLoop(func() { that.writeCompleteCallback(that) })
		}
		if that.State() == Disconnecting {
			that.shutdownInLoop()
		}
	}
}

package conn

import (
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/socket"
)

func DefaultConnectionCallback(c *TcpConnection) {
	upOrDown := "DOWN"
	if c.Connected() {
		upOrDown = "UP"
	}
	logging.Debugf("%s -> %s is %s", socket.ToIpPort(c.LocalAddr()), socket.ToIpPort(c.PeerAddr()), upOrDown)
}

// DefaultMessageCallback discards everything received.
func DefaultMessageCallback(c *TcpConnection, buf *buffer.Buffer, receiveTime time.Time) {
	buf.RetrieveAll()
}

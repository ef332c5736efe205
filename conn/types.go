package conn

import (
	"time"

	"github.com/moqsien/gkreactor/buffer"
)

type StateE int32

const (
	Disconnected StateE = iota
	Connecting
	Connected
	Disconnecting
)

func (that StateE) String() string {
	switch that {
	case Disconnected:
		return "kDisconnected"
	case Connecting:
		return "kConnecting"
	case Connected:
		return "kConnected"
	case Disconnecting:
		return "kDisconnecting"
	default:
		return "unknown state"
	}
}

// ConnectionCallback fires when a connection goes up and again when it goes down.
type ConnectionCallback func(c *TcpConnection)

// MessageCallback owns buf's content only until it returns.
type MessageCallback func(c *TcpConnection, buf *buffer.Buffer, receiveTime time.Time)

type WriteCompleteCallback func(c *TcpConnection)

type HighWaterMarkCallback func(c *TcpConnection, outputLen int)

// CloseCallback is for the connection's owner. It must not remove the
// connection's channel itself.
type CloseCallback func(c *TcpConnection)

package engine

import (
	"time"

	"github.com/moqsien/gkreactor/iface"
)

type Options struct {
	NumOfLoops    int           // I/O loops besides the base loop
	ReusePort     bool          // SO_REUSEPORT on the listening socket
	TcpNoDelay    bool          // disable Nagle on accepted connections
	ConnKeepAlive time.Duration // keep-alive idle and interval, 0 keeps the system default
	HighWaterMark int           // output bytes that trigger the high-water callback
}

func (that Options) withDefaults() Options {
	if that.NumOfLoops < 0 {
		that.NumOfLoops = 0
	}
	if that.HighWaterMark <= 0 {
		that.HighWaterMark = iface.DefaultHighWater
	}
	return that
}

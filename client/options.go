package client

import "time"

type Options struct {
	Retry          bool          // reconnect after an established connection closes
	TcpNoDelay     bool          // disable Nagle on the connection
	InitRetryDelay time.Duration // first backoff step, doubled on every failure
	MaxRetryDelay  time.Duration // backoff ceiling
}

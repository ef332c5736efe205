package iface

type IFd interface {
	GetFd() int
}

// IChannel is the view a Poller has of a Channel.
type IChannel interface {
	IFd
	Events() uint32
	SetRevents(revents uint32)
	Index() int
	SetIndex(idx int)
	IsNoneEvent() bool
}

// IELoop is the view a Balancer has of an event loop.
type IELoop interface {
	RunInLoop(f Functor)
	QueueInLoop(f Functor)
	IsInLoopThread() bool
	Quit()
}

type IBalancer interface {
	Register(IELoop)
	Next() IELoop
	Iterator(f BalancerIterFunc)
	Len() int
}

package eloop

import (
	"sync/atomic"
	"testing"
)

func TestThreadPoolRoundRobin(t *testing.T) {
	base := newTestLoop(t)
	defer base.Close()

	var inits atomic.Int32
	pool := NewEventLoopThreadPool(base, "io")
	pool.SetThreadNum(3)
	if err := pool.Start(func(*EventLoop) { inits.Add(1) }); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()

	if inits.Load() != 3 {
		t.Fatalf("init callback ran %d times", inits.Load())
	}
	seen := map[*EventLoop]bool{}
	first := pool.GetNextLoop()
	seen[first] = true
	seen[pool.GetNextLoop()] = true
	seen[pool.GetNextLoop()] = true
	if len(seen) != 3 || seen[base] {
		t.Fatalf("expected three distinct I/O loops, got %d", len(seen))
	}
	if pool.GetNextLoop() != first {
		t.Fatal("round robin did not wrap to the first loop")
	}
	if len(pool.GetAllLoops()) != 3 {
		t.Fatalf("GetAllLoops returned %d loops", len(pool.GetAllLoops()))
	}
}

func TestThreadPoolWithoutThreadsUsesBaseLoop(t *testing.T) {
	base := newTestLoop(t)
	defer base.Close()

	var initLoop *EventLoop
	pool := NewEventLoopThreadPool(base, "none")
	if err := pool.Start(func(l *EventLoop) { initLoop = l }); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop()
	if initLoop != base || pool.GetNextLoop() != base {
		t.Fatal("pool without threads must hand out the base loop")
	}
	if loops := pool.GetAllLoops(); len(loops) != 1 || loops[0] != base {
		t.Fatal("GetAllLoops should only contain the base loop")
	}
}

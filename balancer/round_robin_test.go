package balancer

import (
	"testing"

	"github.com/moqsien/gkreactor/iface"
)

type fakeLoop struct{ id int }

func (that *fakeLoop) RunInLoop(f iface.Functor)   { f() }
func (that *fakeLoop) QueueInLoop(f iface.Functor) { f() }
func (that *fakeLoop) IsInLoopThread() bool        { return true }
func (that *fakeLoop) Quit()                       {}

func TestRoundRobinWraps(t *testing.T) {
	rr := NewRoundRobin()
	if rr.Next() != nil {
		t.Fatal("empty balancer returned a loop")
	}
	for i := 0; i < 3; i++ {
		rr.Register(&fakeLoop{id: i})
	}
	for i := 0; i < 7; i++ {
		got := rr.Next().(*fakeLoop).id
		if got != i%3 {
			t.Fatalf("pick %d: got loop %d, want %d", i, got, i%3)
		}
	}
}

func TestIteratorStops(t *testing.T) {
	rr := NewRoundRobin()
	for i := 0; i < 4; i++ {
		rr.Register(&fakeLoop{id: i})
	}
	visited := 0
	rr.Iterator(func(key int, val iface.IELoop) bool {
		visited++
		return key < 1
	})
	if visited != 2 || rr.Len() != 4 {
		t.Fatalf("visited=%d len=%d", visited, rr.Len())
	}
}

package socket

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/sys"
)

func TestSockaddrConversion(t *testing.T) {
	cases := []string{"127.0.0.1:8080", "[::1]:9000", "0.0.0.0:0"}
	for _, c := range cases {
		addr, err := ResolveTCPAddr(c)
		if err != nil {
			t.Fatal(err)
		}
		sa, err := ToSockaddr(addr)
		if err != nil {
			t.Fatal(err)
		}
		back := FromSockaddr(sa)
		if !back.IP.Equal(addr.IP) || back.Port != addr.Port {
			t.Fatalf("%s converted back to %s", c, back)
		}
	}
	if ToIpPort(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 1}) != "[::1]:1" {
		t.Fatal("IPv6 host not bracketed")
	}
	if addr, _ := ResolveTCPAddr(":0"); Family(addr) != unix.AF_INET {
		t.Fatal("empty host should resolve to the IPv4 wildcard")
	}
	if _, err := ToSockaddr(nil); err == nil {
		t.Fatal("nil address accepted")
	}
}

func TestListenAcceptShutdown(t *testing.T) {
	addr, _ := ResolveTCPAddr("127.0.0.1:0")
	ls, err := NewNonblocking(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer ls.Close()
	ls.SetReuseAddr(true)
	ls.SetReusePort(true)
	if err = ls.BindAddress(addr); err != nil {
		t.Fatal(err)
	}
	if err = ls.Listen(); err != nil {
		t.Fatal(err)
	}
	local := ls.LocalAddr()
	if local == nil || local.Port == 0 {
		t.Fatal("listener has no port")
	}

	if _, _, err = ls.Accept(); err != sys.EAGAIN {
		t.Fatalf("accept on an empty backlog returned %v", err)
	}

	c, err := net.Dial("tcp", local.String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var connFd int
	var peer *net.TCPAddr
	deadline := time.Now().Add(2 * time.Second)
	for {
		connFd, peer, err = ls.Accept()
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	conn := New(connFd)
	defer conn.Close()
	if peer.String() != c.LocalAddr().String() || conn.PeerAddr().Port != peer.Port {
		t.Fatalf("peer %s, client %s", peer, c.LocalAddr())
	}
	conn.SetTcpNoDelay(true)
	conn.SetKeepAlive(true)
	if err = conn.SetKeepAlivePeriod(30); err != nil {
		t.Fatal(err)
	}
	if err = conn.SetKeepAlivePeriod(0); err == nil {
		t.Fatal("zero keep-alive period accepted")
	}

	conn.ShutdownWrite()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var b [1]byte
	if n, err := c.Read(b[:]); n != 0 || err == nil {
		t.Fatalf("expected EOF after ShutdownWrite, got n=%d err=%v", n, err)
	}
	if err = conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err = conn.Close(); err != nil {
		t.Fatal("second Close should be a no-op")
	}
}

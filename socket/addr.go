package socket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils/errs"
)

// ResolveTCPAddr resolves address ("host:port") to a TCP address. An empty
// host means the IPv4 wildcard.
func ResolveTCPAddr(address string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}
	if addr.IP == nil {
		addr.IP = net.IPv4zero
	}
	return addr, nil
}

// Family returns AF_INET or AF_INET6 for addr.
func Family(addr *net.TCPAddr) int {
	if addr.IP.To4() != nil {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

func ToSockaddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if addr == nil {
		return nil, errs.ErrInvalidAddress
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		return sa4, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, errs.ErrInvalidAddress
	}
	sa6 := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa6.Addr[:], ip6)
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa6.ZoneId = uint32(ifi.Index)
		}
	}
	return sa6, nil
}

func FromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, s.Addr[:])
		return &net.TCPAddr{IP: ip, Port: s.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		addr := &net.TCPAddr{IP: ip, Port: s.Port}
		if s.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(s.ZoneId)); err == nil {
				addr.Zone = ifi.Name
			}
		}
		return addr
	}
	return nil
}

// ToIpPort formats addr as "ip:port", bracketing IPv6 hosts.
func ToIpPort(addr *net.TCPAddr) string {
	if addr == nil {
		return ""
	}
	return net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port))
}

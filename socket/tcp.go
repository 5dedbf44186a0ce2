package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

// tcpListenFD creates a non-blocking, listening TCP socket bound to
// addr with SO_REUSEADDR set, mirroring the options a net.ListenTCP
// would apply but keeping fd ownership with the caller.
func tcpListenFD(addr *net.TCPAddr) (int, error) {
	domain := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa, err := toSockaddr(domain, addr.IP, addr.Port)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// tcpConnectFD starts a non-blocking connect. connected reports
// whether it completed synchronously (common for loopback).
func tcpConnectFD(addr *net.TCPAddr) (fd int, connected bool, err error) {
	domain := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, false, err
	}
	sa, err := toSockaddr(domain, addr.IP, addr.Port)
	if err != nil {
		unix.Close(fd)
		return -1, false, err
	}
	err = unix.Connect(fd, sa)
	if err == nil {
		return fd, true, nil
	}
	if err == unix.EINPROGRESS {
		return fd, false, nil
	}
	unix.Close(fd)
	return -1, false, err
}

func toSockaddr(domain int, ip net.IP, port int) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], ip.To16())
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: port}
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], v4)
	return sa, nil
}

// encodeSockaddr normalizes a peer address into the explicit {v4,v6}
// tagged blob described in DESIGN.md (resolving spec.md §9's Open
// Question on sockaddr_storage portability): 1 tag byte + address
// bytes + big-endian u16 port.
func encodeSockaddr(sa unix.Sockaddr) []byte {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		b := make([]byte, 1+4+2)
		b[0] = 4
		copy(b[1:5], a.Addr[:])
		b[5] = byte(a.Port >> 8)
		b[6] = byte(a.Port)
		return b
	case *unix.SockaddrInet6:
		b := make([]byte, 1+16+2)
		b[0] = 6
		copy(b[1:17], a.Addr[:])
		b[17] = byte(a.Port >> 8)
		b[18] = byte(a.Port)
		return b
	default:
		return nil
	}
}

// decodeSockaddr is the inverse of encodeSockaddr, used on the UDP
// send path to turn a worker-supplied blob back into a destination.
func decodeSockaddr(b []byte) unix.Sockaddr {
	if len(b) < 1 {
		return nil
	}
	port := 0
	switch b[0] {
	case 4:
		if len(b) < 7 {
			return nil
		}
		port = int(b[5])<<8 | int(b[6])
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], b[1:5])
		return sa
	case 6:
		if len(b) < 19 {
			return nil
		}
		port = int(b[17])<<8 | int(b[18])
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], b[1:17])
		return sa
	}
	return nil
}

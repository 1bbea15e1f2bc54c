// Package wire owns raw TCP socket descriptors: bind/listen/accept on the
// server side, recv/send with timeouts on the client side. A Socket has
// exactly one owner; Close is safe to call twice but a Socket must never be
// shared across goroutines.
package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Kind says which side of accept a descriptor came from.
type Kind int

const (
	KindServer Kind = iota
	KindClient
)

var (
	// ErrTimeout reports a recv or send that exceeded its socket timeout.
	ErrTimeout = errors.New("socket operation timed out")
	// ErrClosed reports an operation on an already-closed socket.
	ErrClosed = errors.New("socket is closed")
)

// Addr is a peer or bind address.
type Addr struct {
	Host string
	Port uint16
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Socket wraps an OS descriptor. The zero value is not usable; construct
// with NewServerSocket or receive one from Accept.
type Socket struct {
	fd     int
	kind   Kind
	closed atomic.Bool
}

// NewServerSocket creates a listening-side TCP socket.
func NewServerSocket() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	unix.CloseOnExec(fd)
	return &Socket{fd: fd, kind: KindServer}, nil
}

// FD exposes the raw descriptor for the poller.
func (s *Socket) FD() int { return s.fd }

// Kind reports which side of accept the socket is.
func (s *Socket) Kind() Kind { return s.kind }

// SetReuseAddr sets SO_REUSEADDR; must run before Bind.
func (s *Socket) SetReuseAddr() error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	return nil
}

// Bind binds to an IPv4 address.
func (s *Socket) Bind(addr Addr) error {
	ip := net.ParseIP(addr.Host)
	if ip == nil {
		return fmt.Errorf("bind: invalid address %q", addr.Host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return fmt.Errorf("bind: not an IPv4 address: %q", addr.Host)
	}

	sa := &unix.SockaddrInet4{Port: int(addr.Port)}
	copy(sa.Addr[:], ip4)
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return nil
}

// Listen marks the socket as accepting with the given backlog.
func (s *Socket) Listen(backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Accept takes one pending connection and returns the client socket along
// with the peer address.
func (s *Socket) Accept() (*Socket, Addr, error) {
	for {
		nfd, sa, err := unix.Accept(s.fd)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, Addr{}, fmt.Errorf("accept: %w", err)
		}
		unix.CloseOnExec(nfd)
		return &Socket{fd: nfd, kind: KindClient}, peerAddr(sa), nil
	}
}

func peerAddr(sa unix.Sockaddr) Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return Addr{Host: net.IP(a.Addr[:]).String(), Port: uint16(a.Port)}
	case *unix.SockaddrInet6:
		return Addr{Host: net.IP(a.Addr[:]).String(), Port: uint16(a.Port)}
	default:
		return Addr{Host: "unknown"}
	}
}

// LocalAddr reports the bound address, useful after binding port 0.
func (s *Socket) LocalAddr() (Addr, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Addr{}, fmt.Errorf("getsockname: %w", err)
	}
	return peerAddr(sa), nil
}

// SetRecvTimeout bounds every subsequent Recv.
func (s *Socket) SetRecvTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("setsockopt SO_RCVTIMEO: %w", err)
	}
	return nil
}

// SetSendTimeout bounds every subsequent Send.
func (s *Socket) SetSendTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		return fmt.Errorf("setsockopt SO_SNDTIMEO: %w", err)
	}
	return nil
}

// Recv reads up to len(buf) bytes. It returns io.EOF on orderly shutdown
// and ErrTimeout when the recv timeout elapsed with no data.
func (s *Socket) Recv(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return 0, ErrTimeout
			}
			return 0, fmt.Errorf("recv: %w", err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Send writes up to len(buf) bytes and returns how many were taken. Short
// writes are expected; callers loop.
func (s *Socket) Send(buf []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Write(s.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return 0, ErrTimeout
			}
			return 0, fmt.Errorf("send: %w", err)
		}
		return n, nil
	}
}

// SendAll loops Send until buf is fully drained.
func (s *Socket) SendAll(buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, err := s.Send(buf[sent:])
		if err != nil {
			return err
		}
		sent += n
	}
	return nil
}

// Close releases the descriptor. Safe to call more than once.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

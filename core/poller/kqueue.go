//go:build darwin || freebsd || netbsd || openbsd

package poller

import (
	"golang.org/x/sys/unix"
)

// KqueuePoller is a kqueue-based I/O multiplexer.
type KqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

// New creates a new Poller (BSD/macOS).
func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	return &KqueuePoller{
		kq:     kq,
		events: make([]unix.Kevent_t, 64),
	}, nil
}

// Add adds a file descriptor to the watch list.
func (p *KqueuePoller) Add(fd int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// Remove removes a file descriptor from the watch list.
func (p *KqueuePoller) Remove(fd int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// Wait waits for I/O events.
func (p *KqueuePoller) Wait(timeout int) ([]int, error) {
	ts := unix.NsecToTimespec(int64(timeout) * 1e6)
	n, err := unix.Kevent(p.kq, nil, p.events, &ts)
	if err != nil && err != unix.EINTR {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	fds := make([]int, 0, n)
	for i := 0; i < n; i++ {
		fds = append(fds, int(p.events[i].Ident))
	}
	return fds, nil
}

// Close closes the Poller.
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kq)
}

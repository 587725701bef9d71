package link

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultProbeTimeout bounds how long Available may wait for a byte.
const DefaultProbeTimeout = 10 * time.Millisecond

// rawPort is what a backend must provide; stream adds the Channel semantics.
type rawPort interface {
	// readTimeout returns (0, nil) when d elapses without data.
	readTimeout(p []byte, d time.Duration) (int, error)
	write(p []byte) (int, error)
	close() error
}

// stream implements Channel over a rawPort.
//
// Bytes read by Available are kept in peeked and handed to the next Read,
// so probing never loses input across an ownership change.
type stream struct {
	port   rawPort
	name   string
	probe  time.Duration
	closed atomic.Bool

	mu     sync.Mutex
	peeked []byte
	probeB []byte
}

var _ Channel = (*stream)(nil)

func newStream(name string, port rawPort, probe time.Duration) *stream {
	if probe <= 0 {
		probe = DefaultProbeTimeout
	}

	return &stream{
		port:   port,
		name:   name,
		probe:  probe,
		probeB: make([]byte, 256),
	}
}

func (s *stream) Read(p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.closed.Load() {
		return 0, s.fault(ErrClosed)
	}

	s.mu.Lock()
	if len(s.peeked) > 0 {
		n := copy(p, s.peeked)
		s.peeked = s.peeked[n:]
		s.mu.Unlock()

		return n, nil
	}
	s.mu.Unlock()

	n, err := s.port.readTimeout(p, timeout)
	if err != nil {
		if n > 0 {
			return n, nil
		}

		return 0, s.fault(err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}

	return n, nil
}

func (s *stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, s.fault(ErrClosed)
	}

	for written := 0; written < len(p); {
		n, err := s.port.write(p[written:])
		written += n

		if err != nil {
			return written, s.fault(err)
		}
		if n == 0 {
			return written, s.fault(io.ErrShortWrite)
		}
	}

	return len(p), nil
}

func (s *stream) Available() (bool, error) {
	if s.closed.Load() {
		return false, s.fault(ErrClosed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.peeked) > 0 {
		return true, nil
	}

	n, err := s.port.readTimeout(s.probeB, s.probe)
	if n > 0 {
		s.peeked = append(s.peeked, s.probeB[:n]...)
		return true, nil
	}
	if err != nil {
		return false, s.fault(err)
	}

	return false, nil
}

func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.port.close()
}

// String returns the device name the channel was opened with.
func (s *stream) String() string {
	return s.name
}

func (s *stream) fault(err error) error {
	return fmt.Errorf("%w: %s: %w", ErrChannelFault, s.name, err)
}

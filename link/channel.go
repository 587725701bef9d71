package link

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for channel access.
var (
	// ErrTimeout reports that no byte arrived within the read timeout.
	// It is recoverable and drives protocol retries.
	ErrTimeout = errors.New("link: read timeout")

	// ErrChannelFault wraps every non-timeout I/O failure of the underlying link.
	ErrChannelFault = errors.New("link: channel fault")

	// ErrClosed is wrapped in ErrChannelFault when the channel was closed locally.
	ErrClosed = errors.New("link: channel closed")
)

// Channel is the byte-level view of the serial link.
//
// Implementations are not required to support concurrent readers; callers
// serialize reads through an Arbiter.
type Channel interface {
	// Read reads up to len(p) bytes, waiting at most timeout for the first one.
	// It returns ErrTimeout when nothing arrived.
	Read(p []byte, timeout time.Duration) (int, error)
	// Write writes all of p or returns an error wrapping ErrChannelFault.
	Write(p []byte) (int, error)
	// Available reports whether input is pending without blocking for long.
	Available() (bool, error)
	// Close releases the underlying device. Pending and later calls fail with ErrClosed.
	Close() error
}

// IsTimeout reports whether err is a recoverable read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsFault reports whether err is a fatal channel failure.
func IsFault(err error) bool {
	return errors.Is(err, ErrChannelFault)
}

// ReadByte reads a single byte, waiting at most timeout.
func ReadByte(ch Channel, timeout time.Duration) (byte, error) {
	var b [1]byte
	if _, err := ch.Read(b[:], timeout); err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadByteBefore reads a single byte, waiting until deadline. It returns
// ErrTimeout once the deadline has passed.
func ReadByteBefore(ch Channel, deadline time.Time) (byte, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, ErrTimeout
	}

	return ReadByte(ch, remaining)
}

// ReadFull fills buf, allowing at most gap between consecutive reads.
//
// The gap timer restarts after every chunk, so a slow but steady sender is
// not penalized for the total length of buf.
func ReadFull(ch Channel, buf []byte, gap time.Duration) error {
	for read := 0; read < len(buf); {
		n, err := ch.Read(buf[read:], gap)
		read += n

		if err != nil {
			if IsTimeout(err) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, read, len(buf))
			}

			return err
		}
	}

	return nil
}

// WriteByte writes a single control byte.
func WriteByte(ch Channel, b byte) error {
	_, err := ch.Write([]byte{b})

	return err
}

// Drain reads and discards input until the line is silent for silence, or
// until limit elapses on a line that never goes quiet. It returns the number
// of bytes discarded.
func Drain(ch Channel, silence, limit time.Duration) (int, error) {
	buf := make([]byte, 256)
	deadline := time.Now().Add(limit)
	discarded := 0

	for time.Now().Before(deadline) {
		n, err := ch.Read(buf, silence)
		discarded += n

		if err != nil {
			if IsTimeout(err) {
				return discarded, nil
			}

			return discarded, err
		}
	}

	return discarded, nil
}

package xmodem

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/logger"
)

// cancelPoll bounds a single channel read so cancellation is noticed while
// a long wait is in progress.
const cancelPoll = 100 * time.Millisecond

// Result summarizes a finished or aborted session.
type Result struct {
	SessionID string
	Direction Direction
	Mode      Mode
	// BlockSize is the negotiated payload length.
	BlockSize int
	// Bytes counts source bytes for a sender and padded payload bytes for a
	// receiver.
	Bytes      int64
	Blocks     int
	Retries    int
	Duplicates int
	// EOTAcked is false when a lenient sender gave up waiting for the EOT reply.
	EOTAcked bool
	Duration time.Duration
}

// session is the state of one transfer call. It is never shared.
type session struct {
	ch      link.Channel
	cfg     *Config
	metrics *Metrics
	logger  logger.Logger

	id        string
	direction Direction
	mode      Mode
	blockSize int

	seq      byte // next sequence to send or expect
	prev     byte // last accepted sequence
	accepted bool // prev is valid
	failures int  // consecutive failures on the current block
	lastErr  error

	start  time.Time
	result Result
}

func newSession(ch link.Channel, cfg *Config, m *Metrics, dir Direction) *session {
	id := uuid.NewString()

	return &session{
		ch:        ch,
		cfg:       cfg,
		metrics:   m,
		logger:    cfg.logger.With("session", id, "direction", dir.String()),
		id:        id,
		direction: dir,
		blockSize: cfg.blockSize,
		seq:       1,
		start:     time.Now(),
		result:    Result{SessionID: id, Direction: dir},
	}
}

// waitByte reads one byte before deadline. It returns link.ErrTimeout when
// the deadline passes, and an *AbortError on cancellation or channel fault.
func (s *session) waitByte(ctx context.Context, deadline time.Time) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, abortErr(UserCancelled, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, link.ErrTimeout
		}

		b, err := link.ReadByte(s.ch, min(remaining, cancelPoll))
		if err == nil {
			return b, nil
		}
		if !link.IsTimeout(err) {
			return 0, abortErr(ChannelFault, err)
		}
	}
}

func (s *session) writeByte(b byte) error {
	if err := link.WriteByte(s.ch, b); err != nil {
		return abortErr(ChannelFault, err)
	}

	return nil
}

func (s *session) write(p []byte) error {
	if _, err := s.ch.Write(p); err != nil {
		return abortErr(ChannelFault, err)
	}

	return nil
}

// cancelPeer sends the CAN burst. Errors are ignored: the session is already
// over.
func (s *session) cancelPeer() {
	if _, err := s.ch.Write([]byte{CAN, CAN}); err != nil {
		s.logger.Debug("xmodem: failed to send CAN", "error", err)
	}
}

// drainCancel discards the rest of the peer's CAN burst so it is not read
// by the listener or the next session.
func (s *session) drainCancel() {
	n, err := link.Drain(s.ch, s.cfg.charTimeout, s.cfg.blockTimeout)
	if err != nil {
		s.logger.Debug("xmodem: drain after cancel failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("xmodem: discarded bytes after cancel", "count", n)
	}
}

func (s *session) setMode(mode Mode) {
	s.mode = mode
	s.result.Mode = mode
}

func (s *session) setBlockSize(size int) {
	s.blockSize = size
	s.result.BlockSize = size
}

// finish records the outcome. err is nil on success, otherwise the step error
// that ended the session.
func (s *session) finish(err error) (Result, error) {
	s.result.Duration = time.Since(s.start)

	if err == nil {
		s.metrics.incTransfer()
		s.logger.Info("xmodem: transfer completed",
			"bytes", s.result.Bytes,
			"blocks", s.result.Blocks,
			"retries", s.result.Retries,
			"mode", s.mode.String(),
			"block_size", s.blockSize,
			"duration", s.result.Duration,
		)

		return s.result, nil
	}

	var ae *AbortError
	if !errors.As(err, &ae) {
		ae = abortErr(LocalIO, err)
	}

	switch {
	case ae.Reason == PeerCancelled:
		s.drainCancel()
	case ae.Reason.notifiesPeer():
		s.cancelPeer()
	}

	s.metrics.incAbort()
	s.logger.Warn("xmodem: transfer aborted",
		"reason", ae.Reason.String(),
		"error", ae.Err,
		"bytes", s.result.Bytes,
		"blocks", s.result.Blocks,
		"retries", s.result.Retries,
	)

	return s.result, ae
}

package xmodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-modemterm/link"
)

type recvState uint8

const (
	stateNegotiate recvState = iota
	stateAwaitBlock
	stateReject
	stateRecvDone
)

func (st recvState) String() string {
	switch st {
	case stateNegotiate:
		return "Negotiate"
	case stateAwaitBlock:
		return "AwaitBlock"
	case stateReject:
		return "Reject"
	case stateRecvDone:
		return "Done"
	default:
		return fmt.Sprintf("recvState(%d)", uint8(st))
	}
}

type receiver struct {
	*session
	dst io.Writer

	startByte  byte // C or NAK
	attempts   int
	sizeLocked bool
}

func newReceiver(s *session, dst io.Writer) *receiver {
	r := &receiver{session: s, dst: dst, startByte: NAK}
	if s.cfg.preferCRC {
		r.startByte = CRC
	}
	// the block length is learned from the first start marker
	s.blockSize = 0

	return r
}

func runReceive(ctx context.Context, r *receiver) error {
	state := stateNegotiate
	for state != stateRecvDone {
		if err := ctx.Err(); err != nil {
			return abortErr(UserCancelled, err)
		}

		next, err := r.step(ctx, state)
		if err != nil {
			return err
		}
		if next != state {
			r.logger.Debug("xmodem: state transition", "from", state.String(), "to", next.String(), "seq", r.seq)
		}
		state = next
	}

	return nil
}

func (r *receiver) step(ctx context.Context, state recvState) (recvState, error) {
	switch state {
	case stateNegotiate:
		return r.negotiate(ctx)
	case stateAwaitBlock:
		return r.awaitBlock(ctx)
	case stateReject:
		return r.reject()
	default:
		return stateRecvDone, fmt.Errorf("xmodem: invalid receive state %s", state)
	}
}

func (r *receiver) negotiate(ctx context.Context) (recvState, error) {
	budget := r.cfg.negotiateRetries
	if r.attempts >= budget {
		return stateRecvDone, abortErr(NoResponse, fmt.Errorf("no block after %d start bytes", r.attempts))
	}
	if r.startByte == CRC && budget > 1 && r.attempts >= budget/2 {
		r.logger.Info("xmodem: sender ignores CRC request, falling back to checksum")
		r.startByte = NAK
	}
	r.attempts++

	if err := r.writeByte(r.startByte); err != nil {
		return stateRecvDone, err
	}

	deadline := time.Now().Add(r.cfg.negotiateInterval)
	for {
		b, err := r.waitByte(ctx, deadline)
		if err != nil {
			if link.IsTimeout(err) {
				return stateNegotiate, nil
			}

			return stateRecvDone, err
		}

		switch b {
		case SOH, STX:
			if r.startByte == CRC {
				r.setMode(ModeCRC)
			} else {
				r.setMode(ModeChecksum)
			}

			return r.readBlock(b)
		case EOT:
			return r.complete()
		case CAN:
			return stateRecvDone, abortErr(PeerCancelled, errors.New("CAN during negotiation"))
		default:
			r.logger.Debug("xmodem: ignoring byte during negotiation", "byte", b)
		}
	}
}

func (r *receiver) awaitBlock(ctx context.Context) (recvState, error) {
	b, err := r.waitByte(ctx, time.Now().Add(r.cfg.blockTimeout))
	if err != nil {
		if link.IsTimeout(err) {
			r.lastErr = fmt.Errorf("%w: no block %d within %v", link.ErrTimeout, r.seq, r.cfg.blockTimeout)
			return stateReject, nil
		}

		return stateRecvDone, err
	}

	switch b {
	case SOH, STX:
		return r.readBlock(b)
	case EOT:
		return r.complete()
	case CAN:
		return stateRecvDone, abortErr(PeerCancelled, fmt.Errorf("CAN while waiting for block %d", r.seq))
	default:
		r.lastErr = fmt.Errorf("%w: unexpected byte 0x%02X", ErrProtocolViolation, b)
		return stateReject, nil
	}
}

// readBlock reads and checks the rest of a block after its start marker.
func (r *receiver) readBlock(header byte) (recvState, error) {
	size, _ := sizeFor(header)
	if !r.sizeLocked {
		r.setBlockSize(size)
		r.sizeLocked = true
	} else if size != r.blockSize {
		r.lastErr = fmt.Errorf("%w: %d-byte block in a %d-byte session", ErrProtocolViolation, size, r.blockSize)
		return stateReject, nil
	}

	frame := make([]byte, frameSize(size, r.mode))
	if err := link.ReadFull(r.ch, frame, r.cfg.charTimeout); err != nil {
		if link.IsTimeout(err) {
			r.lastErr = fmt.Errorf("short block %d: %w", r.seq, err)
			return stateReject, nil
		}

		return stateRecvDone, abortErr(ChannelFault, err)
	}

	blk, err := ParseBlock(header, frame, r.mode)
	if err != nil {
		r.lastErr = err
		return stateReject, nil
	}

	switch {
	case blk.Seq == r.seq:
		if _, err := r.dst.Write(blk.Data); err != nil {
			return stateRecvDone, abortErr(LocalIO, err)
		}
		if err := r.writeByte(ACK); err != nil {
			return stateRecvDone, err
		}

		r.metrics.incBlockRecv(len(blk.Data))
		r.result.Blocks++
		r.result.Bytes += int64(len(blk.Data))
		r.prev, r.accepted = blk.Seq, true
		r.seq = NextSeq(r.seq, r.cfg.zeroWrap)
		r.failures = 0

		return stateAwaitBlock, nil

	case r.accepted && blk.Seq == r.prev:
		// the sender missed our ACK
		if err := r.writeByte(ACK); err != nil {
			return stateRecvDone, err
		}
		r.metrics.incDuplicate()
		r.result.Duplicates++
		r.logger.Debug("xmodem: duplicate block acknowledged", "seq", blk.Seq)

		return stateAwaitBlock, nil

	default:
		r.lastErr = fmt.Errorf("%w: got block %d, want %d", ErrProtocolViolation, blk.Seq, r.seq)
		return stateReject, nil
	}
}

// reject drains the rest of a bad block and asks for a resend.
func (r *receiver) reject() (recvState, error) {
	r.failures++
	if r.failures >= r.cfg.retryLimit {
		return stateRecvDone, abortErr(TooManyRetries, r.lastErr)
	}

	r.result.Retries++
	r.metrics.incBlockRetry()
	r.logger.Debug("xmodem: rejecting block", "seq", r.seq, "failures", r.failures, "cause", r.lastErr)

	if _, err := link.Drain(r.ch, r.cfg.charTimeout, r.cfg.blockTimeout); err != nil {
		return stateRecvDone, abortErr(ChannelFault, err)
	}
	if err := r.writeByte(NAK); err != nil {
		return stateRecvDone, err
	}

	return stateAwaitBlock, nil
}

func (r *receiver) complete() (recvState, error) {
	if err := r.writeByte(ACK); err != nil {
		return stateRecvDone, err
	}
	r.result.EOTAcked = true

	return stateRecvDone, nil
}

package xmodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-modemterm/link"
)

type sendState uint8

const (
	stateAwaitStart sendState = iota
	stateSendBlock
	stateAwaitAck
	stateSendEOT
	stateAwaitEOTAck
	stateSendDone
)

func (st sendState) String() string {
	switch st {
	case stateAwaitStart:
		return "AwaitStart"
	case stateSendBlock:
		return "SendBlock"
	case stateAwaitAck:
		return "AwaitAck"
	case stateSendEOT:
		return "SendEOT"
	case stateAwaitEOTAck:
		return "AwaitEOTAck"
	case stateSendDone:
		return "Done"
	default:
		return fmt.Sprintf("sendState(%d)", uint8(st))
	}
}

type sender struct {
	*session
	src io.Reader
	buf []byte

	packed   []byte // current block on the wire
	chunkLen int    // source bytes in the current block
	eof      bool

	startAttempts int
	eotAttempts   int
}

func runSend(ctx context.Context, snd *sender) error {
	state := stateAwaitStart
	for state != stateSendDone {
		if err := ctx.Err(); err != nil {
			return abortErr(UserCancelled, err)
		}

		next, err := snd.step(ctx, state)
		if err != nil {
			return err
		}
		if next != state {
			snd.logger.Debug("xmodem: state transition", "from", state.String(), "to", next.String(), "seq", snd.seq)
		}
		state = next
	}

	return nil
}

// step performs the work of one state and returns the next one.
func (snd *sender) step(ctx context.Context, state sendState) (sendState, error) {
	switch state {
	case stateAwaitStart:
		return snd.awaitStart(ctx)
	case stateSendBlock:
		return snd.sendBlock(ctx)
	case stateAwaitAck:
		return snd.awaitAck(ctx)
	case stateSendEOT:
		return snd.sendEOT()
	case stateAwaitEOTAck:
		return snd.awaitEOTAck(ctx)
	default:
		return stateSendDone, fmt.Errorf("xmodem: invalid send state %s", state)
	}
}

func (snd *sender) awaitStart(ctx context.Context) (sendState, error) {
	if snd.startAttempts >= snd.cfg.startRetries {
		return stateSendDone, abortErr(NoResponse, fmt.Errorf("no start byte after %d attempts", snd.startAttempts))
	}
	snd.startAttempts++

	deadline := time.Now().Add(snd.cfg.startTimeout)
	for {
		b, err := snd.waitByte(ctx, deadline)
		if err != nil {
			if link.IsTimeout(err) {
				snd.logger.Debug("xmodem: waiting for receiver", "attempt", snd.startAttempts)
				return stateAwaitStart, nil
			}

			return stateSendDone, err
		}

		switch b {
		case NAK:
			snd.setMode(ModeChecksum)
			if snd.blockSize == BlockSize1K {
				snd.logger.Info("xmodem: receiver requested checksum mode, using 128-byte blocks")
				snd.setBlockSize(BlockSize128)
			}
		case CRC:
			snd.setMode(ModeCRC)
		case CAN:
			return stateSendDone, abortErr(PeerCancelled, errors.New("CAN while waiting for receiver"))
		default:
			snd.logger.Debug("xmodem: ignoring byte while waiting for receiver", "byte", b)
			continue
		}

		snd.setBlockSize(snd.blockSize)
		snd.logger.Debug("xmodem: receiver ready", "mode", snd.mode.String(), "block_size", snd.blockSize)

		return snd.loadNext()
	}
}

// loadNext reads the next chunk from the source and packs it.
func (snd *sender) loadNext() (sendState, error) {
	if snd.eof {
		return stateSendEOT, nil
	}

	n, err := io.ReadFull(snd.src, snd.buf[:snd.blockSize])
	switch {
	case errors.Is(err, io.EOF):
		snd.eof = true
		return stateSendEOT, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		snd.eof = true
	case err != nil:
		return stateSendDone, abortErr(LocalIO, err)
	}

	blk := NewBlock(snd.seq, snd.buf[:n], snd.blockSize, snd.cfg.padByte)
	snd.packed = blk.Pack(snd.mode)
	snd.chunkLen = n
	snd.failures = 0

	return stateSendBlock, nil
}

// discardStale drops input that arrived before the block is (re)sent:
// late ACKs, repeated start bytes and line noise. A CAN still cancels.
func (snd *sender) discardStale() error {
	for range 2 * len(snd.packed) {
		ok, err := snd.ch.Available()
		if err != nil {
			return abortErr(ChannelFault, err)
		}
		if !ok {
			return nil
		}

		b, err := link.ReadByte(snd.ch, snd.cfg.charTimeout)
		if err != nil {
			if link.IsTimeout(err) {
				return nil
			}

			return abortErr(ChannelFault, err)
		}

		switch b {
		case CAN:
			return abortErr(PeerCancelled, errors.New("CAN before block"))
		case ACK:
			snd.logger.Debug("xmodem: ignoring stale ACK", "seq", snd.seq)
		default:
		}
	}

	return nil
}

func (snd *sender) sendBlock(_ context.Context) (sendState, error) {
	if err := snd.discardStale(); err != nil {
		return stateSendDone, err
	}
	if err := snd.write(snd.packed); err != nil {
		return stateSendDone, err
	}

	return stateAwaitAck, nil
}

func (snd *sender) awaitAck(ctx context.Context) (sendState, error) {
	deadline := time.Now().Add(snd.cfg.ackTimeout)
	for {
		b, err := snd.waitByte(ctx, deadline)
		if err != nil {
			if link.IsTimeout(err) {
				return snd.retry(Timeout, fmt.Errorf("no reply to block %d within %v", snd.seq, snd.cfg.ackTimeout))
			}

			return stateSendDone, err
		}

		switch b {
		case ACK:
			snd.metrics.incBlockSend(snd.chunkLen)
			snd.result.Blocks++
			snd.result.Bytes += int64(snd.chunkLen)
			snd.prev = snd.seq
			snd.seq = NextSeq(snd.seq, snd.cfg.zeroWrap)

			return snd.loadNext()
		case NAK:
			return snd.retry(TooManyRetries, fmt.Errorf("block %d rejected", snd.seq))
		case CAN:
			return stateSendDone, abortErr(PeerCancelled, fmt.Errorf("CAN after block %d", snd.seq))
		default:
			snd.logger.Debug("xmodem: ignoring byte while waiting for ACK", "byte", b, "seq", snd.seq)
		}
	}
}

// retry counts a failed attempt for the current block. Once the budget is
// spent the session aborts with reason.
func (snd *sender) retry(reason AbortReason, cause error) (sendState, error) {
	snd.failures++
	if snd.failures >= snd.cfg.retryLimit {
		return stateSendDone, abortErr(reason, fmt.Errorf("%w after %d attempts", cause, snd.failures))
	}

	snd.result.Retries++
	snd.metrics.incBlockRetry()
	snd.logger.Debug("xmodem: resending block", "seq", snd.seq, "failures", snd.failures, "cause", cause)

	return stateSendBlock, nil
}

func (snd *sender) sendEOT() (sendState, error) {
	if snd.eotAttempts >= snd.cfg.eotRetries {
		if snd.cfg.strictEOT {
			return stateSendDone, abortErr(EOTNotAcked, fmt.Errorf("no ACK after %d EOTs", snd.eotAttempts))
		}
		snd.logger.Warn("xmodem: EOT not acknowledged, treating transfer as complete", "attempts", snd.eotAttempts)

		return stateSendDone, nil
	}
	snd.eotAttempts++

	if err := snd.writeByte(EOT); err != nil {
		return stateSendDone, err
	}

	return stateAwaitEOTAck, nil
}

func (snd *sender) awaitEOTAck(ctx context.Context) (sendState, error) {
	deadline := time.Now().Add(snd.cfg.ackTimeout)
	for {
		b, err := snd.waitByte(ctx, deadline)
		if err != nil {
			if link.IsTimeout(err) {
				return stateSendEOT, nil
			}

			return stateSendDone, err
		}

		switch b {
		case ACK:
			snd.result.EOTAcked = true
			return stateSendDone, nil
		case NAK:
			return stateSendEOT, nil
		case CAN:
			return stateSendDone, abortErr(PeerCancelled, errors.New("CAN after EOT"))
		default:
			snd.logger.Debug("xmodem: ignoring byte while waiting for EOT ACK", "byte", b)
		}
	}
}

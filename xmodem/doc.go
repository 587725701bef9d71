// Package xmodem implements the XMODEM file transfer protocol: 128-byte
// blocks with an arithmetic checksum or CRC-16, and 1024-byte blocks with
// CRC-16 (XMODEM-1K).
//
// # Wire format
//
//	[SOH|STX][Seq][255-Seq][Data(128|1024)][Checksum(1) | CRC-16 big-endian(2)]
//
// The receiver selects the integrity mode with its first byte: NAK for the
// checksum, 'C' for CRC-16. The final block is padded with [DefaultPadByte]
// unless [WithPadByte] says otherwise. Sequence numbers start at 1 and wrap
// from 255 to 1, or to 0 with [WithZeroWrap].
//
// The 255-Seq complement byte is sent and checked in every mode, CRC and
// 1K blocks included, as classic XMODEM-1K peers expect. Blocks without it
// are rejected as protocol violations.
//
// # Sessions
//
// [Engine.Send] and [Engine.Receive] each run one session as an explicit
// state machine:
//
//	send:    AwaitStart -> SendBlock <-> AwaitAck -> SendEOT <-> AwaitEOTAck -> Done
//	receive: Negotiate -> AwaitBlock <-> Reject -> Done
//
// Every wait has its own deadline; the consecutive failure budget, not a
// session deadline, bounds the total duration. Integrity and protocol errors
// on received blocks are answered with NAK and retried. Anything else ends
// the session with an [*AbortError] whose [AbortReason] matches a sentinel
// error:
//
//	_, err := engine.Send(ctx, f)
//	if errors.Is(err, xmodem.ErrPeerCancelled) {
//	    // ...
//	}
//
// Cancelling ctx stops the session at the next read, sends CAN CAN to the
// peer and returns [ErrUserCancelled]. A CAN from the peer ends the session
// with [ErrPeerCancelled] after the rest of its burst has been drained from
// the channel.
//
// The engine performs I/O on the [link.Channel] it was created with and
// assumes the caller holds exclusive ownership of it for the whole call.
package xmodem

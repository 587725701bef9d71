package xmodem

import "fmt"

// XMODEM control bytes.
const (
	// SOH starts a block with a 128-byte payload.
	SOH byte = 0x01
	// STX starts a block with a 1024-byte payload.
	STX byte = 0x02
	// EOT ends the transfer.
	EOT byte = 0x04
	// ACK confirms a block or the EOT.
	ACK byte = 0x06
	// NAK rejects a block; as the first receiver byte it requests checksum mode.
	NAK byte = 0x15
	// CAN cancels the transfer.
	CAN byte = 0x18
	// CRC as the first receiver byte requests CRC-16 mode.
	CRC byte = 'C'

	// DefaultPadByte fills the unused tail of the final block (CP/M EOF).
	DefaultPadByte byte = 0x1A
)

// Payload lengths.
const (
	BlockSize128 = 128
	BlockSize1K  = 1024
)

// Mode is the per-session integrity mode, chosen by the receiver.
type Mode uint8

const (
	// ModeChecksum uses a one-byte arithmetic sum.
	ModeChecksum Mode = iota
	// ModeCRC uses a two-byte big-endian CRC-16/XMODEM.
	ModeCRC
)

// String returns "checksum" or "crc".
func (m Mode) String() string {
	switch m {
	case ModeChecksum:
		return "checksum"
	case ModeCRC:
		return "crc"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// TrailerSize returns the number of trailer bytes for the mode.
func (m Mode) TrailerSize() int {
	if m == ModeCRC {
		return 2
	}

	return 1
}

// Direction tells which way a session moves data.
type Direction uint8

const (
	DirectionSend Direction = iota
	DirectionReceive
)

func (d Direction) String() string {
	if d == DirectionSend {
		return "send"
	}

	return "receive"
}

// headerFor returns the start marker for a payload length.
func headerFor(size int) byte {
	if size == BlockSize1K {
		return STX
	}

	return SOH
}

// sizeFor returns the payload length announced by a start marker.
func sizeFor(header byte) (int, bool) {
	switch header {
	case SOH:
		return BlockSize128, true
	case STX:
		return BlockSize1K, true
	default:
		return 0, false
	}
}

// NextSeq returns the sequence number following seq. Sequence 0 is skipped
// unless zeroWrap selects the classic 255 to 0 wrap.
func NextSeq(seq byte, zeroWrap bool) byte {
	next := seq + 1
	if next == 0 && !zeroWrap {
		return 1
	}

	return next
}

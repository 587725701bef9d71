package xmodem

import (
	"encoding/binary"
	"fmt"
)

// Block is one XMODEM data block.
//
// On the wire:
//
//	[SOH|STX][Seq][255-Seq][Data(128|1024)][Checksum(1) | CRC-16(2)]
type Block struct {
	Seq  byte
	Data []byte
}

// NewBlock builds a block of size payload bytes from chunk, filling the tail
// with pad.
func NewBlock(seq byte, chunk []byte, size int, pad byte) *Block {
	data := make([]byte, size)
	n := copy(data, chunk)
	for i := n; i < size; i++ {
		data[i] = pad
	}

	return &Block{Seq: seq, Data: data}
}

// Trailer computes the integrity trailer of the payload for mode.
func (b *Block) Trailer(mode Mode) []byte {
	if mode == ModeCRC {
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, CRC16(b.Data))

		return out
	}

	return []byte{Checksum(b.Data)}
}

// Pack serializes the block. len(Data) selects the start marker.
func (b *Block) Pack(mode Mode) []byte {
	buf := make([]byte, 0, 3+len(b.Data)+mode.TrailerSize())
	buf = append(buf, headerFor(len(b.Data)), b.Seq, 255-b.Seq)
	buf = append(buf, b.Data...)

	return append(buf, b.Trailer(mode)...)
}

// frameSize is the number of bytes following the start marker.
func frameSize(size int, mode Mode) int {
	return 2 + size + mode.TrailerSize()
}

// ParseBlock decodes the bytes that follow a start marker: sequence,
// complement, payload and trailer.
//
// ParseBlock validates the complement ([ErrProtocolViolation]) and the
// trailer ([ErrIntegrityMismatch]). Sequence ordering is checked by the
// receiver.
func ParseBlock(header byte, frame []byte, mode Mode) (*Block, error) {
	size, ok := sizeFor(header)
	if !ok {
		return nil, fmt.Errorf("%w: unknown start byte 0x%02X", ErrProtocolViolation, header)
	}

	if want := frameSize(size, mode); len(frame) != want {
		return nil, fmt.Errorf("%w: frame length %d, want %d", ErrProtocolViolation, len(frame), want)
	}

	seq, comp := frame[0], frame[1]
	if seq != 255-comp {
		return nil, fmt.Errorf("%w: sequence %d with complement %d", ErrProtocolViolation, seq, comp)
	}

	blk := &Block{Seq: seq, Data: make([]byte, size)}
	copy(blk.Data, frame[2:2+size])

	wire := frame[2+size:]
	calc := blk.Trailer(mode)
	for i := range calc {
		if wire[i] != calc[i] {
			return nil, fmt.Errorf("%w: block %d %s wire=%X computed=%X", ErrIntegrityMismatch, seq, mode, wire, calc)
		}
	}

	return blk, nil
}

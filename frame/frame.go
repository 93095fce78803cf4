/*
Package frame implements the wire encoding of a single block sent to the
on-board controller.

A frame is laid out as follows, with multi-byte fields in network byte order:

	offset 0        tile ID (1 byte)
	offset 1        block index (2 bytes)
	offset 3        payload (L bytes)
	offset 3+L      zero padding up to the requested size, if any
	offset 3+P      LRC of every preceding byte (1 byte)

Block 0 of every tile is the metadata block. Its payload is the two byte
block count and it is never padded, so it is always MetadataFrameSize bytes
long. All other blocks are padded to the block size.
*/
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/bodgit/iac/lrc"
)

const (
	// HeaderSize is the size of the tile ID and block index
	HeaderSize = 3
	// TrailerSize is the size of the checksum
	TrailerSize = lrc.Size
	// Overhead is the number of bytes added to every payload
	Overhead = HeaderSize + TrailerSize

	// MetadataSize is the payload size of block 0
	MetadataSize = 2
	// MetadataFrameSize is the total size of a block 0 frame
	MetadataFrameSize = Overhead + MetadataSize
)

// Errors returned when decoding a frame.
var (
	ErrShortFrame  = errors.New("frame: short frame")
	ErrChecksum    = errors.New("frame: checksum mismatch")
	ErrPayloadSize = errors.New("frame: payload size does not match frame")
)

// Frame is a decoded wire frame.
type Frame struct {
	Tile    byte
	Index   uint16
	Payload []byte
}

// Size returns the length of a frame carrying a padded payload of blockSize
// bytes.
func Size(blockSize int) int {
	return Overhead + blockSize
}

// Build returns the wire encoding of a block. If padTo is greater than the
// payload length, the payload is followed by zero bytes up to padTo. A padTo
// of zero or less disables padding. Identical inputs always produce
// identical frames.
func Build(tile byte, index uint16, payload []byte, padTo int) []byte {
	n := HeaderSize + len(payload) + TrailerSize
	if padTo > len(payload) {
		n += padTo - len(payload)
	}

	b := new(bytes.Buffer)
	b.Grow(n)

	h := lrc.New()
	w := io.MultiWriter(b, h)

	// Neither bytes.Buffer nor the digest return errors
	_, _ = w.Write([]byte{tile})
	_ = binary.Write(w, binary.BigEndian, index)
	_, _ = w.Write(payload)
	if padTo > len(payload) {
		_, _ = w.Write(make([]byte, padTo-len(payload)))
	}

	return h.Sum(b.Bytes())
}

// Metadata returns the frame for block 0 of a tile split into count blocks.
func Metadata(tile byte, count uint16) []byte {
	var payload [MetadataSize]byte
	binary.BigEndian.PutUint16(payload[:], count)
	return Build(tile, 0, payload[:], 0)
}

// Verify checks the frame is long enough to hold a header and checksum and
// that the checksum over the whole frame is zero.
func Verify(b []byte) error {
	if len(b) < Overhead {
		return ErrShortFrame
	}
	if lrc.Checksum(b) != 0 {
		return ErrChecksum
	}
	return nil
}

// Parse verifies and decodes a frame. The payload length has to be supplied
// as neither the padding nor the declared block length is carried on the
// wire; any bytes between the payload and the checksum are treated as
// padding. The returned payload aliases b.
func Parse(b []byte, payloadSize int) (Frame, error) {
	if err := Verify(b); err != nil {
		return Frame{}, err
	}
	if payloadSize < 0 || payloadSize > len(b)-Overhead {
		return Frame{}, ErrPayloadSize
	}
	return Frame{
		Tile:    b[0],
		Index:   binary.BigEndian.Uint16(b[1:HeaderSize]),
		Payload: b[HeaderSize : HeaderSize+payloadSize],
	}, nil
}

// BlockCount decodes the payload of a metadata frame.
func BlockCount(f Frame) (uint16, error) {
	if f.Index != 0 || len(f.Payload) != MetadataSize {
		return 0, ErrPayloadSize
	}
	return binary.BigEndian.Uint16(f.Payload), nil
}

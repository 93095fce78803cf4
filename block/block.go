/*
Package block splits an encoded tile into the numbered blocks that are
framed and sent one at a time.

Block 0 is synthetic and carries the number of data blocks that follow as a
two byte big-endian integer. Blocks 1 to count carry the blob itself, every
block being the block size except possibly the last.
*/
package block

import (
	"encoding/binary"
	"errors"
	"math"
)

// MaxBlocks is the largest number of data blocks a tile can be split into.
const MaxBlocks = math.MaxUint16

var (
	errBlockSize = errors.New("block: block size must be positive")
	errTooLarge  = errors.New("block: blob needs more than 65535 blocks")
)

// Block is one segment of a tile blob.
type Block struct {
	Index   uint16
	Payload []byte
	// PadTo is the size the payload should be zero-padded to when framed,
	// zero for the metadata block.
	PadTo int
	Final bool
}

// Count returns the number of data blocks needed for n bytes.
func Count(n, size int) int {
	return (n + size - 1) / size
}

// Segmenter is a cursor over one blob. It must not be reused.
type Segmenter struct {
	blob   []byte
	size   int
	count  uint16
	index  int
	offset int
}

// NewSegmenter returns a Segmenter splitting blob into blocks of size bytes.
// The blob is not copied and must not be modified while the segmenter is in
// use.
func NewSegmenter(blob []byte, size int) (*Segmenter, error) {
	if size < 1 {
		return nil, errBlockSize
	}
	count := Count(len(blob), size)
	if count > MaxBlocks {
		return nil, errTooLarge
	}
	return &Segmenter{
		blob:  blob,
		size:  size,
		count: uint16(count),
	}, nil
}

// Count returns the number of data blocks, not including the metadata block.
func (s *Segmenter) Count() uint16 {
	return s.count
}

// Next returns the next block, or false once every block has been returned.
// The first block is always the metadata block.
func (s *Segmenter) Next() (Block, bool) {
	if s.index > int(s.count) {
		return Block{}, false
	}

	if s.index == 0 {
		s.index++
		payload := make([]byte, 2)
		binary.BigEndian.PutUint16(payload, s.count)
		return Block{Index: 0, Payload: payload}, true
	}

	end := s.offset + s.size
	if end > len(s.blob) {
		end = len(s.blob)
	}

	b := Block{
		Index:   uint16(s.index),
		Payload: s.blob[s.offset:end:end],
		PadTo:   s.size,
		Final:   s.index == int(s.count),
	}

	s.offset = end
	s.index++

	return b, true
}

/*
Package lrc implements the 8-bit longitudinal redundancy check, or LRC,
checksum as expected by the on-board controller.

The checksum is the exclusive-or of every byte in the message. Appending the
checksum to the message it was computed over always yields a message whose
checksum is zero, which is how the receiver validates a frame.
*/
package lrc

import "hash"

// Size of an LRC checksum in bytes.
const Size = 1

type digest struct {
	lrc byte
}

// New creates a new hash.Hash computing the LRC checksum. Its Sum method
// appends the single checksum byte.
func New() hash.Hash {
	return &digest{}
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.lrc = 0 }

// Update returns the result of adding the bytes in p to the lrc.
func Update(lrc byte, p []byte) byte {
	for _, b := range p {
		lrc ^= b
	}
	return lrc
}

func (d *digest) Write(p []byte) (n int, err error) {
	d.lrc = Update(d.lrc, p)
	return len(p), nil
}

// Sum8 returns the current checksum.
func (d *digest) Sum8() byte { return d.lrc }

func (d *digest) Sum(in []byte) []byte {
	return append(in, d.lrc)
}

// Checksum returns the LRC checksum of data. The checksum of an empty slice
// is zero.
func Checksum(data []byte) byte { return Update(0, data) }

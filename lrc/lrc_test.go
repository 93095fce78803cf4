package lrc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	tables := []struct {
		name string
		in   []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"single", []byte{0x55}, 0x55},
		{"pair", []byte{0x0f, 0xf0}, 0xff},
		{"cancel", []byte{0xaa, 0xaa}, 0x00},
		{"header", []byte{0x25, 0x00, 0x03}, 0x26},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			assert.Equal(t, table.want, Checksum(table.in))
		})
	}
}

func TestChecksumTrailerIsZero(t *testing.T) {
	for _, in := range [][]byte{
		nil,
		[]byte("hello, world"),
		bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 513),
	} {
		c := Checksum(in)
		assert.Equal(t, byte(0), c^c)
		assert.Equal(t, byte(0), Checksum(append(append([]byte{}, in...), c)))
	}
}

func TestDigest(t *testing.T) {
	in := []byte{0x01, 0x02, 0x04, 0x08, 0x10}

	h := New()
	assert.Equal(t, Size, h.Size())
	assert.Equal(t, 1, h.BlockSize())

	// Writing in pieces must match a single pass
	_, _ = h.Write(in[:2])
	_, _ = h.Write(in[2:])
	assert.Equal(t, []byte{Checksum(in)}, h.Sum(nil))
	assert.Equal(t, []byte{0xaa, 0x1f}, h.Sum([]byte{0xaa}))

	h.Reset()
	assert.Equal(t, []byte{0x00}, h.Sum(nil))
}

package block

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, blob []byte, size int) []Block {
	s, err := NewSegmenter(blob, size)
	require.NoError(t, err)

	var blocks []Block
	for {
		b, ok := s.Next()
		if !ok {
			break
		}
		blocks = append(blocks, b)
	}

	// Exhausted segmenters stay exhausted
	_, ok := s.Next()
	assert.False(t, ok)

	return blocks
}

func TestSegmenter(t *testing.T) {
	tables := []struct {
		name   string
		length int
		size   int
		count  int
		last   int
	}{
		{"empty", 0, 2048, 0, 0},
		{"short", 1, 2048, 1, 1},
		{"exact", 4096, 2048, 2, 2048},
		{"remainder", 5000, 2048, 3, 904},
		{"tiny", 10, 3, 4, 1},
		{"unit", 5, 1, 5, 1},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			blob := make([]byte, table.length)
			for i := range blob {
				blob[i] = byte(i * 7)
			}

			blocks := collect(t, blob, table.size)
			require.Len(t, blocks, 1+table.count)

			meta := blocks[0]
			assert.Equal(t, uint16(0), meta.Index)
			assert.Equal(t, []byte{byte(table.count >> 8), byte(table.count)}, meta.Payload)
			assert.Equal(t, 0, meta.PadTo)
			assert.False(t, meta.Final)

			var joined []byte
			for i, b := range blocks[1:] {
				assert.Equal(t, uint16(i+1), b.Index)
				assert.Equal(t, table.size, b.PadTo)
				assert.Equal(t, i+1 == table.count, b.Final)
				if !b.Final {
					assert.Len(t, b.Payload, table.size)
				} else {
					assert.Len(t, b.Payload, table.last)
				}
				joined = append(joined, b.Payload...)
			}
			assert.True(t, bytes.Equal(blob, joined))
		})
	}
}

func TestSegmenterCount(t *testing.T) {
	s, err := NewSegmenter(make([]byte, 5000), 2048)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), s.Count())

	b, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x03}, b.Payload)
}

func TestSegmenterPayloadIsolated(t *testing.T) {
	blocks := collect(t, []byte{1, 2, 3, 4, 5}, 2)

	// Appending to one payload must not clobber the next
	_ = append(blocks[1].Payload, 0xff)
	assert.Equal(t, []byte{3, 4}, blocks[2].Payload)
}

func TestNewSegmenterErrors(t *testing.T) {
	_, err := NewSegmenter(nil, 0)
	assert.Equal(t, errBlockSize, err)

	_, err = NewSegmenter(make([]byte, MaxBlocks+1), 1)
	assert.Equal(t, errTooLarge, err)

	s, err := NewSegmenter(make([]byte, MaxBlocks), 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(MaxBlocks), s.Count())
}

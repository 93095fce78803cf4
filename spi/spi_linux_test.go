//go:build linux

package spi

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoctlNumbers(t *testing.T) {
	// Values as computed by the kernel headers
	assert.Equal(t, uintptr(0x40016b01), iocWrMode)
	assert.Equal(t, uintptr(0x40016b03), iocWrBitsPerWord)
	assert.Equal(t, uintptr(0x40046b04), iocWrMaxSpeedHz)
	assert.Equal(t, uintptr(0x40206b00), iocMessage1)
	assert.Equal(t, uintptr(32), unsafe.Sizeof(transfer{}))
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "spidev9.9"), DefaultConfig)
	assert.Error(t, err)
}

func TestOpenNotSPI(t *testing.T) {
	// A regular file opens but rejects the ioctls
	path := filepath.Join(t.TempDir(), "spidev0.0")
	require.NoError(t, writeFile(path))

	_, err := Open(path, DefaultConfig)
	assert.Error(t, err)
}

func TestClosedDevice(t *testing.T) {
	d := &Device{fd: -1}

	_, err := d.Exchange([]byte{1})
	assert.Equal(t, errClosed, err)
	assert.Equal(t, errClosed, d.Close())
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte{0}, 0o600)
}

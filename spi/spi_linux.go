//go:build linux

package spi

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From linux/spi/spidev.h
const (
	iocMagic = 'k'

	iocWrite     = 1
	iocDirShift  = 30
	iocSizeShift = 16
	iocTypeShift = 8
)

func iow(nr, size uintptr) uintptr {
	return iocWrite<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr
}

// transfer mirrors struct spi_ioc_transfer.
type transfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

var (
	iocWrMode        = iow(1, 1)
	iocWrBitsPerWord = iow(3, 1)
	iocWrMaxSpeedHz  = iow(4, 4)
	iocMessage1      = iow(0, unsafe.Sizeof(transfer{}))
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// Device is an open spidev node.
type Device struct {
	fd  int
	cfg Config
}

// Open opens and configures the spidev node at path.
func Open(path string, cfg Config) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("spi: open %s: %w", path, err)
	}

	if err := ioctl(fd, iocWrMode, unsafe.Pointer(&cfg.Mode)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("spi: set mode: %w", err)
	}
	if err := ioctl(fd, iocWrBitsPerWord, unsafe.Pointer(&cfg.BitsPerWord)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("spi: set bits per word: %w", err)
	}
	if err := ioctl(fd, iocWrMaxSpeedHz, unsafe.Pointer(&cfg.MaxSpeedHz)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("spi: set maximum speed: %w", err)
	}

	return &Device{fd: fd, cfg: cfg}, nil
}

// Exchange writes b and returns the len(b) bytes clocked in at the same
// time.
func (d *Device) Exchange(b []byte) ([]byte, error) {
	if d.fd < 0 {
		return nil, errClosed
	}
	if len(b) == 0 {
		return nil, nil
	}

	tx := append([]byte(nil), b...)
	rx := make([]byte, len(b))

	tr := transfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(b)),
		speedHz:     d.cfg.MaxSpeedHz,
		bitsPerWord: d.cfg.BitsPerWord,
	}

	err := ioctl(d.fd, iocMessage1, unsafe.Pointer(&tr))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	if err != nil {
		return nil, fmt.Errorf("spi: transfer: %w", err)
	}

	return rx, nil
}

// Close closes the device.
func (d *Device) Close() error {
	if d.fd < 0 {
		return errClosed
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

//go:build linux

package regmap

import (
	"os"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultDevice is the privileged physical memory device.
const DefaultDevice = "/dev/mem"

// DevMem is the channel to physical memory. The device is opened on the
// first Map and closed when the last Region mapped through it is closed.
type DevMem struct {
	Path string

	mu   sync.Mutex
	f    *os.File
	refs int
}

var (
	defaultOnce sync.Once
	defaultDev  *DevMem
)

// Default returns the process wide channel on DefaultDevice.
func Default() *DevMem {
	defaultOnce.Do(func() {
		defaultDev = &DevMem{Path: DefaultDevice}
	})
	return defaultDev
}

// Refs is the number of live regions mapped through d.
func (d *DevMem) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}

func (d *DevMem) acquire() (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		f, err := os.OpenFile(d.Path, os.O_RDWR|os.O_SYNC, 0)
		if err != nil {
			return nil, errors.Wrapf(ErrHardwareAccess, "regmap: open %s: %v", d.Path, err)
		}
		d.f = f
	}
	d.refs++
	return d.f, nil
}

func (d *DevMem) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return nil
	}
	d.refs--
	if d.refs > 0 || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Map maps size bytes of physical memory starting at base. base does not
// need to be page aligned.
func (d *DevMem) Map(base uint64, size int) (*Region, error) {
	if size <= 0 || size%4 != 0 {
		return nil, errors.Wrapf(ErrHardwareAccess, "regmap: invalid window size %d", size)
	}
	f, err := d.acquire()
	if err != nil {
		return nil, err
	}
	page := uint64(unix.Getpagesize())
	start := base &^ (page - 1)
	off := int(base - start)
	length := off + size
	if rem := length % int(page); rem != 0 {
		length += int(page) - rem
	}
	raw, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = d.release()
		return nil, errors.Wrapf(ErrHardwareAccess, "regmap: mmap 0x%08x: %v", base, err)
	}
	return &Region{
		base:  base,
		words: unsafe.Slice((*uint32)(unsafe.Pointer(&raw[off])), size/4),
		release: func() error {
			err := unix.Munmap(raw)
			if rerr := d.release(); err == nil {
				err = rerr
			}
			return err
		},
	}, nil
}

//go:build !linux

package regmap

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultDevice is the privileged physical memory device.
const DefaultDevice = "/dev/mem"

// DevMem is only functional on linux.
type DevMem struct {
	Path string
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

// Refs is always 0.
func (d *DevMem) Refs() int { return 0 }

// Map always fails on this platform.
func (d *DevMem) Map(base uint64, size int) (*Region, error) {
	return nil, errors.Wrapf(ErrHardwareAccess, "regmap: %s not supported on this platform", d.Path)
}

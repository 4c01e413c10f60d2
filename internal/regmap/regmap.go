// Package regmap gives word addressed access to physical register windows.
//
// Every load and store goes through sync/atomic so the compiler never
// caches, merges or reorders accesses to peripheral registers.
package regmap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrHardwareAccess is returned when the physical memory channel cannot be
// opened or a window cannot be mapped.
var ErrHardwareAccess = errors.New("hardware access error")

// Mapper maps physical address windows.
type Mapper interface {
	Map(base uint64, size int) (*Region, error)
}

// Region is one mapped physical window.
type Region struct {
	base  uint64
	words []uint32

	// Hooks used by the in-process fake.
	onStore func(base uint64, word int, v uint32)
	onLoad  func(base uint64, word int, v uint32) uint32

	closeOnce sync.Once
	release   func() error
	closeErr  error
}

// Base is the physical address of word 0.
func (r *Region) Base() uint64 {
	return r.base
}

// Len is the size of the window in 32-bit words.
func (r *Region) Len() int {
	return len(r.words)
}

// Load reads the register at word offset i.
func (r *Region) Load(i int) uint32 {
	v := atomic.LoadUint32(&r.words[i])
	if r.onLoad != nil {
		v = r.onLoad(r.base, i, v)
	}
	return v
}

// Store writes v to the register at word offset i.
func (r *Region) Store(i int, v uint32) {
	atomic.StoreUint32(&r.words[i], v)
	if r.onStore != nil {
		r.onStore(r.base, i, v)
	}
}

// Set ORs bits into the register at word offset i.
func (r *Region) Set(i int, bits uint32) {
	r.Store(i, r.Load(i)|bits)
}

// Clear removes bits from the register at word offset i.
func (r *Region) Clear(i int, bits uint32) {
	r.Store(i, r.Load(i)&^bits)
}

// Close unmaps the window. It is safe to call more than once.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if r.release != nil {
			r.closeErr = r.release()
		}
		r.words = nil
	})
	return r.closeErr
}

func (r *Region) String() string {
	return fmt.Sprintf("regmap{0x%08x+%d}", r.base, 4*len(r.words))
}

package regmap

import (
	"sync"

	"github.com/pkg/errors"
)

// WindowSize is the largest window Memory maps at one base.
const WindowSize = 64 << 10

// Memory is an in-process Mapper backed by ordinary slices. Regions mapped
// at the same base share their backing words, like real registers. Each base
// gets one WindowSize backing allocated on first use and never moved.
type Memory struct {
	// OnStore, when set, observes every register write.
	OnStore func(base uint64, word int, v uint32)
	// OnLoad, when set, may replace the value returned by a register read.
	// It stands in for bits the hardware drives on its own.
	OnLoad func(base uint64, word int, v uint32) uint32
	// Err, when set, is returned by Map.
	Err error

	mu    sync.Mutex
	words map[uint64][]uint32
	open  int
}

// NewMemory returns an empty fake physical address space.
func NewMemory() *Memory {
	return &Memory{words: map[uint64][]uint32{}}
}

// Map implements Mapper.
func (m *Memory) Map(base uint64, size int) (*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, errors.Wrapf(ErrHardwareAccess, "regmap: map 0x%08x: %v", base, m.Err)
	}
	if size <= 0 || size%4 != 0 {
		return nil, errors.Wrapf(ErrHardwareAccess, "regmap: invalid window size %d", size)
	}
	if size > WindowSize {
		return nil, errors.Wrapf(ErrHardwareAccess, "regmap: window size %d over %d", size, WindowSize)
	}
	w := m.window(base)
	m.open++
	return &Region{
		base:    base,
		words:   w[:size/4],
		onStore: m.OnStore,
		onLoad:  m.OnLoad,
		release: func() error {
			m.mu.Lock()
			m.open--
			m.mu.Unlock()
			return nil
		},
	}, nil
}

// Open is the number of regions not closed yet.
func (m *Memory) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Peek reads a word without going through a Region.
func (m *Memory) Peek(base uint64, word int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.words[base]
	if word >= len(w) {
		return 0
	}
	return w[word]
}

// Poke writes a word without going through a Region. word must be inside
// the window.
func (m *Memory) Poke(base uint64, word int, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window(base)[word] = v
}

// window returns the backing words of base. m.mu must be held.
func (m *Memory) window(base uint64) []uint32 {
	w, ok := m.words[base]
	if !ok {
		w = make([]uint32, WindowSize/4)
		m.words[base] = w
	}
	return w
}

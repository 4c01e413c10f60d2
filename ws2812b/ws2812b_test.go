package ws2812b_test

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/bcm283x"
	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
	"github.com/coreman2200/arcaluminis-ws2812b/ws2812b"
)

const (
	pwmBase  = bcm283x.BaseBCM2836 + bcm283x.PWMOffset
	cmBase   = bcm283x.BaseBCM2836 + bcm283x.ClockOffset
	gpioBase = bcm283x.BaseBCM2836 + bcm283x.GPIOOffset

	wordCTL  = 0
	wordSTA  = 1
	wordRNG1 = 4
	wordFIF1 = 6
)

// fifo collects the words written to FIF1.
type fifo struct {
	words  []uint32
	stores int
}

func (f *fifo) store(base uint64, word int, v uint32) {
	f.stores++
	if base == pwmBase && word == wordFIF1 {
		f.words = append(f.words, v)
	}
}

// newMemory reports an idle FIFO, so every queued frame counts as sent.
func newMemory(f *fifo) *regmap.Memory {
	mem := regmap.NewMemory()
	mem.OnStore = f.store
	mem.OnLoad = func(base uint64, word int, v uint32) uint32 {
		if base == pwmBase && word == wordSTA {
			return v&^uint32(bcm283x.StatusFULL1|bcm283x.StatusSTA1) | uint32(bcm283x.StatusEMPT1)
		}
		return v
	}
	return mem
}

func testOpts(t *testing.T, mem *regmap.Memory) *ws2812b.Opts {
	o := ws2812b.DefaultOpts
	o.Base = bcm283x.BaseBCM2836
	o.Mapper = mem
	o.Sleep = func(time.Duration) {}
	l := zerolog.New(zerolog.NewTestWriter(t))
	o.Logger = &l
	return &o
}

func newDev(t *testing.T, n int) (*ws2812b.Dev, *regmap.Memory, *fifo) {
	f := &fifo{}
	mem := newMemory(f)
	d, err := ws2812b.New(n, testOpts(t, mem))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	f.words = nil
	return d, mem, f
}

func TestNewRejectsConfiguration(t *testing.T) {
	cases := []struct {
		name string
		n    int
		edit func(o *ws2812b.Opts)
	}{
		{"zero pixels", 0, nil},
		{"negative pixels", -3, nil},
		{"over capacity", 9, func(o *ws2812b.Opts) { o.Capacity = 8 }},
		{"zero divisor", 1, func(o *ws2812b.Opts) { o.Divisor = bcm283x.Divisor{} }},
		{"divisor too large", 1, func(o *ws2812b.Opts) { o.Divisor = bcm283x.Divisor{Integer: 4096} }},
		{"fraction", 1, func(o *ws2812b.Opts) { o.Divisor = bcm283x.Divisor{Integer: 400, Fraction: 1} }},
		{"pin", 1, func(o *ws2812b.Opts) { o.Pin = 17 }},
		{"gnd source", 1, func(o *ws2812b.Opts) { o.Source = bcm283x.SourceGND }},
		{"negative reset", 1, func(o *ws2812b.Opts) { o.Reset = -time.Microsecond }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := &fifo{}
			mem := newMemory(f)
			o := testOpts(t, mem)
			if c.edit != nil {
				c.edit(o)
			}
			d, err := ws2812b.New(c.n, o)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, ws2812b.ErrConfiguration), "%v", err)
			assert.Equal(t, 0, mem.Open())
			assert.Equal(t, 0, f.stores)
		})
	}
}

func TestNewHardwareAccess(t *testing.T) {
	mem := regmap.NewMemory()
	mem.Err = errors.New("permission denied")
	d, err := ws2812b.New(1, testOpts(t, mem))
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, ws2812b.ErrHardwareAccess), "%v", err)
	assert.Equal(t, 0, mem.Open())
}

func TestNewConfiguresHardware(t *testing.T) {
	d, mem, _ := newDev(t, 4)
	assert.Equal(t, 3, mem.Open())
	assert.Equal(t, 4, d.Len())

	// GPIO18 is FSEL1 bits 24-26, ALT5.
	assert.Equal(t, uint32(bcm283x.FuncAlt5), mem.Peek(gpioBase, 1)>>24&7)
	assert.Equal(t, uint32(0x5a000015), mem.Peek(cmBase, 40))
	assert.Equal(t, uint32(0x5a190000), mem.Peek(cmBase, 41))
	assert.Equal(t, uint32(32), mem.Peek(pwmBase, wordRNG1))
	assert.Equal(t, uint32(0x22), mem.Peek(pwmBase, wordCTL))
	assert.Equal(t, "2.500MHz", d.Rate().String())

	for i := 0; i < d.Len(); i++ {
		c, err := d.Pixel(i)
		require.NoError(t, err)
		assert.Equal(t, model.Color{}, c)
	}
}

func TestShowSingleRedPixel(t *testing.T) {
	d, mem, f := newDev(t, 1)
	require.NoError(t, d.SetColor(0, 5, 0, 0))
	require.NoError(t, d.Show())

	// 300µs at 2.5MHz is 750 bits, 24 words of latch.
	require.Len(t, f.words, 3+24)
	assert.Equal(t, []uint32{0x92492492, 0x49a69249, 0x24000000}, f.words[:3])
	for _, w := range f.words[3:] {
		assert.Equal(t, uint32(0), w)
	}
	assert.Equal(t, uint32(0x23), mem.Peek(pwmBase, wordCTL)&0x23, "serializer running")
}

func TestShowWithoutLatch(t *testing.T) {
	f := &fifo{}
	mem := newMemory(f)
	o := testOpts(t, mem)
	o.Reset = 0
	d, err := ws2812b.New(2, o)
	require.NoError(t, err)
	defer func() { require.NoError(t, d.Close()) }()

	require.NoError(t, d.SetNamedColor(1, "white", 1))
	require.NoError(t, d.Show())
	// Black then white, 144 bits in 5 words.
	require.Len(t, f.words, 5)
	assert.Equal(t, uint32(0x92492492), f.words[0])
}

func TestShowRepeats(t *testing.T) {
	d, _, f := newDev(t, 1)
	require.NoError(t, d.SetColor(0, 5, 0, 0))
	require.NoError(t, d.Show())
	first := append([]uint32(nil), f.words...)
	f.words = nil
	require.NoError(t, d.Show())
	assert.Equal(t, first, f.words)
}

func TestSetColorIndex(t *testing.T) {
	d, _, _ := newDev(t, 3)
	require.NoError(t, d.SetColor(1, 1, 2, 3))

	for _, i := range []int{-1, 3, 1 << 20} {
		err := d.SetColor(i, 9, 9, 9)
		assert.True(t, errors.Is(err, ws2812b.ErrIndex), "i=%d: %v", i, err)
		err = d.SetNamedColor(i, "red", 1)
		assert.True(t, errors.Is(err, ws2812b.ErrIndex), "i=%d: %v", i, err)
	}
	for i, want := range []model.Color{{}, {R: 1, G: 2, B: 3}, {}} {
		got, err := d.Pixel(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := d.Pixel(3)
	assert.True(t, errors.Is(err, ws2812b.ErrIndex))
}

func TestSetNamedColor(t *testing.T) {
	d, _, _ := newDev(t, 2)
	require.NoError(t, d.SetNamedColor(0, "yellow", 0.5))
	c, err := d.Pixel(0)
	require.NoError(t, err)
	assert.Equal(t, model.Color{R: 127, G: 127}, c)

	err = d.SetNamedColor(1, "chartreuse", 1)
	assert.True(t, errors.Is(err, ws2812b.ErrUnknownColor), "%v", err)
	c, err = d.Pixel(1)
	require.NoError(t, err)
	assert.Equal(t, model.Color{}, c)

	d.Clear()
	c, err = d.Pixel(0)
	require.NoError(t, err)
	assert.Equal(t, model.Color{}, c)
}

func TestStatus(t *testing.T) {
	d, mem, _ := newDev(t, 1)
	mem.Poke(pwmBase, 1, uint32(bcm283x.StatusEMPT1|bcm283x.StatusSTA1))
	s, err := d.Status()
	require.NoError(t, err)
	assert.NotZero(t, s&bcm283x.StatusEMPT1)
	assert.False(t, s.Err())
}

func TestClose(t *testing.T) {
	d, mem, _ := newDev(t, 2)
	require.NoError(t, d.Close())
	assert.Equal(t, 0, mem.Open())
	assert.Equal(t, uint32(0), mem.Peek(pwmBase, wordCTL))

	require.NoError(t, d.Close())
	assert.True(t, errors.Is(d.Show(), ws2812b.ErrClosed))
	_, err := d.Status()
	assert.True(t, errors.Is(err, ws2812b.ErrClosed))
}

func TestDrawer(t *testing.T) {
	d, _, f := newDev(t, 3)
	assert.Equal(t, "ws2812b{GPIO18, 3}", d.String())
	assert.Equal(t, image.Rect(0, 0, 3, 1), d.Bounds())
	assert.Equal(t, color.NRGBAModel, d.ColorModel())

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 20, A: 255})
	require.NoError(t, d.Draw(image.Rect(1, 0, 3, 1), img, image.Point{}))
	assert.NotEmpty(t, f.words)

	for i, want := range []model.Color{{}, {R: 10}, {G: 20}} {
		got, err := d.Pixel(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	f.words = nil
	require.NoError(t, d.Halt())
	for i := 0; i < d.Len(); i++ {
		got, err := d.Pixel(i)
		require.NoError(t, err)
		assert.Equal(t, model.Color{}, got)
	}
	assert.Equal(t, []uint32{0x92492492, 0x49249249, 0x24924924}, f.words[:3])
}

func TestWrite(t *testing.T) {
	d, _, f := newDev(t, 2)
	n, err := d.Write([]byte{5, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint32{0x92492492, 0x49a69249}, f.words[:2])

	c, err := d.Pixel(0)
	require.NoError(t, err)
	assert.Equal(t, model.Color{R: 5}, c)

	for _, b := range [][]byte{{1, 2}, make([]byte, 9)} {
		n, err := d.Write(b)
		assert.Equal(t, 0, n)
		assert.True(t, errors.Is(err, ws2812b.ErrIndex), "%v", err)
	}
}

// failingMapper fails the nth Map call.
type failingMapper struct {
	*regmap.Memory
	calls, fail int
}

func (m *failingMapper) Map(base uint64, size int) (*regmap.Region, error) {
	m.calls++
	if m.calls == m.fail {
		return nil, fmt.Errorf("map 0x%08x: %w", base, ws2812b.ErrHardwareAccess)
	}
	return m.Memory.Map(base, size)
}

func TestNewPartialMapFailure(t *testing.T) {
	for _, fail := range []int{2, 3} {
		f := &fifo{}
		m := &failingMapper{Memory: newMemory(f), fail: fail}
		o := testOpts(t, m.Memory)
		o.Mapper = m
		d, err := ws2812b.New(1, o)
		assert.Nil(t, d)
		assert.True(t, errors.Is(err, ws2812b.ErrHardwareAccess), "call %d: %v", fail, err)
		assert.Equal(t, fail, m.calls)
		assert.Equal(t, 0, m.Open(), "call %d", fail)
		assert.Equal(t, 0, f.stores)
	}
}

func TestCloseBlanksWithoutLatch(t *testing.T) {
	f := &fifo{}
	mem := newMemory(f)
	var ctl []uint32
	polls := 0
	drained := mem.OnLoad
	mem.OnLoad = func(base uint64, word int, v uint32) uint32 {
		if base == pwmBase && word == wordSTA {
			polls++
			if polls%4 != 0 {
				return uint32(bcm283x.StatusSTA1)
			}
		}
		return drained(base, word, v)
	}
	mem.OnStore = func(base uint64, word int, v uint32) {
		f.store(base, word, v)
		if base == pwmBase && word == wordCTL {
			ctl = append(ctl, v)
		}
	}
	o := testOpts(t, mem)
	o.Reset = 0
	d, err := ws2812b.New(1, o)
	require.NoError(t, err)
	require.NoError(t, d.SetColor(0, 5, 0, 0))
	require.NoError(t, d.Show())

	require.NoError(t, d.Halt())
	pollsBeforeClose := polls
	ctl = nil
	require.NoError(t, d.Close())
	assert.Greater(t, polls, pollsBeforeClose, "waited for the blank frame")
	assert.Equal(t, []uint32{0}, ctl)
	assert.Equal(t, 0, mem.Open())
}

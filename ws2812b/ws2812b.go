package ws2812b

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/bcm283x"
	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
	"github.com/coreman2200/arcaluminis-ws2812b/internal/waveform"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
)

var (
	// ErrConfiguration is returned by New for settings the strip cannot use.
	ErrConfiguration = model.ErrConfiguration
	// ErrIndex is returned for a pixel index outside [0, Len()).
	ErrIndex = model.ErrIndex
	// ErrUnknownColor is returned by SetNamedColor for an unknown name.
	ErrUnknownColor = model.ErrUnknownColor
	// ErrHardwareAccess is returned by New when the registers cannot be mapped.
	ErrHardwareAccess = regmap.ErrHardwareAccess
	// ErrClosed is returned once Close was called.
	ErrClosed = errors.New("ws2812b: device closed")
)

// Opts defines the options for the device.
type Opts struct {
	// Capacity is the longest chain accepted.
	Capacity int
	// Pin is the BCM GPIO number carrying PWM channel 1: 12, 18 or 40.
	Pin int
	// Divisor and Source set the serializer bit rate, three bits per data bit.
	Divisor bcm283x.Divisor
	Source  bcm283x.ClockSource
	// Settle is the delay after each register write. Values <= 0 select
	// bcm283x.DefaultSettle; the PWM block locks up without it.
	Settle time.Duration
	// Sleep blocks for a duration. nil means time.Sleep.
	Sleep func(time.Duration)
	// Reset is how long the line is held low after a frame so the chain
	// latches it. 0 sends no latch words.
	Reset time.Duration
	// Base is the peripheral base address. 0 detects it from the device tree.
	Base uint64
	// Mapper maps the register windows. nil means regmap.Default().
	Mapper regmap.Mapper
	// Logger receives the driver's logs. nil means the global zerolog logger.
	Logger *zerolog.Logger
}

// DefaultOpts is the recommended default options: GPIO18 at 2.5MHz from
// PLLC, which gives WS2812B its 1.2µs bit period.
var DefaultOpts = Opts{
	Capacity: model.DefaultCapacity,
	Pin:      18,
	Divisor:  bcm283x.DefaultDivisor,
	Source:   bcm283x.SourcePLLC,
	Settle:   bcm283x.DefaultSettle,
	Reset:    300 * time.Microsecond,
}

// Dev is a chain of WS2812B LEDs on the PWM serializer.
type Dev struct {
	mu     sync.Mutex
	log    zerolog.Logger
	pin    int
	rate   physic.Frequency
	latch  int
	buf    *model.PixelBuffer
	gpio   *regmap.Region
	pwm    *regmap.Region
	cm     *regmap.Region
	tx     *bcm283x.Transmitter
	closed bool
}

var _ display.Drawer = (*Dev)(nil)

// New maps the registers, routes the pin to the PWM and configures the PWM
// clock for a chain of n pixels, all off.
//
// Nothing is touched on the hardware when the options are rejected.
func New(n int, o *Opts) (*Dev, error) {
	if o == nil {
		o = &DefaultOpts
	}
	opts := *o
	if opts.Settle <= 0 {
		opts.Settle = bcm283x.DefaultSettle
	}
	buf, err := model.NewPixelBuffer(n, opts.Capacity)
	if err != nil {
		return nil, errors.Wrap(err, "ws2812b")
	}
	if err := opts.Divisor.Validate(); err != nil {
		return nil, errors.Wrap(err, "ws2812b")
	}
	fn, err := bcm283x.PWMFunction(opts.Pin)
	if err != nil {
		return nil, errors.Wrap(err, "ws2812b")
	}
	rate := opts.Divisor.Rate(opts.Source.Frequency())
	if rate <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "ws2812b: clock source %s gives no output", opts.Source)
	}
	if opts.Reset < 0 {
		return nil, errors.Wrapf(ErrConfiguration, "ws2812b: negative reset %s", opts.Reset)
	}

	l := log.Logger.With().Str("component", "ws2812b").Logger()
	if opts.Logger != nil {
		l = *opts.Logger
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper = regmap.Default()
	}
	base := opts.Base
	if base == 0 {
		base = bcm283x.PeripheralBase()
	}

	d := &Dev{log: l, pin: opts.Pin, rate: rate, latch: latchWords(opts.Reset, rate), buf: buf}
	if err := d.mapRegisters(mapper, base); err != nil {
		return nil, err
	}
	if err := bcm283x.SetFunction(d.gpio, opts.Pin, fn); err != nil {
		_ = d.unmap()
		return nil, errors.Wrap(err, "ws2812b")
	}
	t := bcm283x.Timing{Settle: opts.Settle, Sleep: opts.Sleep}
	bcm283x.NewClock(d.cm, d.pwm, t, l).Configure(opts.Divisor, opts.Source)
	d.tx = bcm283x.NewTransmitter(d.pwm, t, l)

	l.Info().
		Int("pixels", n).
		Int("gpio", opts.Pin).
		Str("base", fmt.Sprintf("0x%08x", base)).
		Str("rate", rate.String()).
		Int("latch_words", d.latch).
		Msg("ws2812b ready")
	return d, nil
}

func (d *Dev) mapRegisters(m regmap.Mapper, base uint64) error {
	var err error
	if d.gpio, err = m.Map(base+bcm283x.GPIOOffset, bcm283x.BlockSize); err != nil {
		return errors.Wrap(err, "ws2812b: gpio")
	}
	if d.pwm, err = m.Map(base+bcm283x.PWMOffset, bcm283x.BlockSize); err != nil {
		_ = d.unmap()
		return errors.Wrap(err, "ws2812b: pwm")
	}
	if d.cm, err = m.Map(base+bcm283x.ClockOffset, bcm283x.BlockSize); err != nil {
		_ = d.unmap()
		return errors.Wrap(err, "ws2812b: clock manager")
	}
	return nil
}

func (d *Dev) unmap() error {
	var first error
	for _, r := range []*regmap.Region{d.gpio, d.pwm, d.cm} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.gpio, d.pwm, d.cm = nil, nil, nil
	return first
}

// latchWords is the number of zero words holding the line low for reset.
func latchWords(reset time.Duration, rate physic.Frequency) int {
	if reset <= 0 {
		return 0
	}
	period := rate.Period()
	if period <= 0 {
		return 0
	}
	bits := int((reset + period - 1) / period)
	return (bits + waveform.WordBits - 1) / waveform.WordBits
}

// Len is the number of pixels in the chain.
func (d *Dev) Len() int {
	return d.buf.Len()
}

// Rate is the serializer bit rate.
func (d *Dev) Rate() physic.Frequency {
	return d.rate
}

// SetColor sets pixel i. It takes effect on the next Show.
func (d *Dev) SetColor(i int, r, g, b uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Set(i, model.RGB2Color(r, g, b))
}

// SetNamedColor sets pixel i to a named color scaled by luminance in [0, 1].
func (d *Dev) SetNamedColor(i int, name string, luminance float64) error {
	c, ok := model.Named(name)
	if !ok {
		return errors.Wrapf(ErrUnknownColor, "ws2812b: %q", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Set(i, c.Scale(luminance))
}

// Pixel returns the buffered color of pixel i.
func (d *Dev) Pixel(i int) (model.Color, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.At(i)
}

// Clear turns every buffered pixel off. It takes effect on the next Show.
func (d *Dev) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Clear()
}

// Show encodes the buffer and sends it down the chain.
//
// It blocks for the settle delays; the PWM keeps shifting the tail of the
// frame after it returns.
func (d *Dev) Show() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.show()
}

func (d *Dev) show() error {
	if d.closed {
		return ErrClosed
	}
	words := waveform.Encode(d.buf.Pixels()).Reversed()
	words = append(words, make([]uint32, d.latch)...)
	if err := d.tx.Transmit(words); err != nil {
		return errors.Wrap(err, "ws2812b")
	}
	return nil
}

// Write sets pixels from packed R, G, B bytes starting at the first pixel,
// then shows the frame. len(rgb) must be a multiple of 3 and at most 3*Len().
func (d *Dev) Write(rgb []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(rgb)%3 != 0 || len(rgb)/3 > d.buf.Len() {
		return 0, errors.Wrapf(ErrIndex, "ws2812b: %d bytes for %d pixels", len(rgb), d.buf.Len())
	}
	for i := 0; i < len(rgb); i += 3 {
		if err := d.buf.Set(i/3, model.RGB2Color(rgb[i], rgb[i+1], rgb[i+2])); err != nil {
			return 0, err
		}
	}
	if err := d.show(); err != nil {
		return 0, err
	}
	return len(rgb), nil
}

// Status reads the PWM status flags.
func (d *Dev) Status() (bcm283x.PWMStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	return d.tx.Status(), nil
}

// Close waits for the last frame to leave the FIFO, stops the PWM and unmaps
// the registers. It is safe to call more than once.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.tx.Halt()
	if uerr := d.unmap(); err == nil {
		err = uerr
	}
	if err != nil {
		return errors.Wrap(err, "ws2812b: close")
	}
	return nil
}

// display.Drawer

func (d *Dev) String() string {
	return fmt.Sprintf("ws2812b{GPIO%d, %d}", d.pin, d.buf.Len())
}

// Halt turns every LED off.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Clear()
	return d.show()
}

// ColorModel implements display.Drawer. Alpha is ignored.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds is one row, one pixel per LED.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.buf.Len(), 1)
}

// Draw copies the row of src starting at sp into the LEDs covered by r,
// then shows the result.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r = r.Intersect(image.Rect(0, 0, d.buf.Len(), 1))
	sb := src.Bounds()
	for x := r.Min.X; x < r.Max.X; x++ {
		p := image.Pt(sp.X+x-r.Min.X, sp.Y)
		if !p.In(sb) {
			break
		}
		if err := d.buf.Set(x, model.FromColor(src.At(p.X, p.Y))); err != nil {
			return err
		}
	}
	return d.show()
}

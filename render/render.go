// Package render pushes frames of model.Color to any display.Drawer: the
// PWM driver, an SPI strip through nrzled, or the terminal.
package render

import (
	"fmt"
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/config"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
	"github.com/coreman2200/arcaluminis-ws2812b/ws2812b"
)

const (
	BackendPWM     = "pwm"
	BackendSPI     = "spi"
	BackendConsole = "console"
)

type Renderer struct {
	drawer  display.Drawer
	backend string
	buf     *model.PixelBuffer
	port    spi.PortCloser
	newline bool
	log     zerolog.Logger
}

// New wraps d. n is the number of pixels in a frame.
func New(d display.Drawer, backend string, n int, log zerolog.Logger) (*Renderer, error) {
	buf, err := model.NewPixelBuffer(n, 0)
	if err != nil {
		return nil, errors.Wrap(err, "render")
	}
	return &Renderer{drawer: d, backend: backend, buf: buf, log: log}, nil
}

// Open builds the renderer selected by c.Driver. A backend that fails to
// come up is replaced by the console, as is an unknown one.
func Open(c *config.Config, log zerolog.Logger) (*Renderer, error) {
	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed")
	}
	switch c.Driver {
	case BackendPWM:
		o, err := c.DriverOpts(&log)
		if err != nil {
			return nil, err
		}
		d, err := ws2812b.New(c.Pixels, o)
		if err == nil {
			return New(d, BackendPWM, c.Pixels, log)
		}
		if errors.Is(err, ws2812b.ErrConfiguration) {
			return nil, err
		}
		log.Warn().Err(err).
			Str("driver", BackendPWM).
			Int("gpio", o.Pin).
			Msg("PWM init failed; falling back to console")

	case BackendSPI:
		r, err := openSPI(c, log)
		if err == nil {
			return r, nil
		}
		log.Warn().Err(err).
			Str("driver", BackendSPI).
			Str("dev", c.SPI.Dev).
			Int("speed_hz", c.SPI.SpeedHz).
			Msg("SPI init failed; falling back to console")

	case BackendConsole:

	default:
		log.Warn().Str("driver", c.Driver).Msg("unknown driver; using console")
	}
	return Console(c.Pixels, log)
}

func openSPI(c *config.Config, log zerolog.Logger) (*Renderer, error) {
	p, err := spireg.Open(c.SPI.Dev)
	if err != nil {
		return nil, err
	}
	o := nrzled.Opts{
		NumPixels: c.Pixels,
		Channels:  3,
		Freq:      physic.Frequency(c.SPI.SpeedHz) * physic.Hertz,
	}
	d, err := nrzled.NewSPI(p, &o)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	r, err := New(d, BackendSPI, c.Pixels, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	r.port = p
	return r, nil
}

// Console renders to stdout as a row of colored blocks, one line per frame.
func Console(n int, log zerolog.Logger) (*Renderer, error) {
	r, err := New(screen.New(n), BackendConsole, n, log)
	if err != nil {
		return nil, err
	}
	r.newline = true
	return r, nil
}

// Backend names the output in use.
func (r *Renderer) Backend() string {
	return r.backend
}

func (r *Renderer) Len() int {
	return r.buf.Len()
}

func (r *Renderer) String() string {
	return fmt.Sprintf("%s(%s)", r.backend, r.drawer)
}

// Render draws colors starting at the first pixel. Pixels past the end of
// colors keep their previous value.
func (r *Renderer) Render(colors []model.Color) error {
	for i, c := range colors {
		if err := r.buf.Set(i, c); err != nil {
			return errors.Wrap(err, "render")
		}
	}
	return r.draw()
}

// Fill draws every pixel in c.
func (r *Renderer) Fill(c model.Color) error {
	r.buf.Fill(c)
	return r.draw()
}

func (r *Renderer) draw() error {
	if err := r.drawer.Draw(r.drawer.Bounds(), r.buf.Image(), image.Point{}); err != nil {
		return err
	}
	if r.newline {
		fmt.Printf("\n")
	}
	return nil
}

// Clear turns every pixel off.
func (r *Renderer) Clear() error {
	r.buf.Clear()
	return r.drawer.Halt()
}

// Close blanks the output and releases it.
func (r *Renderer) Close() error {
	err := r.Clear()
	if c, ok := r.drawer.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if r.port != nil {
		if cerr := r.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

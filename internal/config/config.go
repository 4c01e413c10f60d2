package config

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/bcm283x"
	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
	"github.com/coreman2200/arcaluminis-ws2812b/ws2812b"
)

type Clock struct {
	Source   string  `yaml:"source"`    // osc | plla | pllc | plld | hdmi
	Divisor  float64 `yaml:"divisor"`   // e.g. 400 or 400.5
	SettleUs int     `yaml:"settle_us"` // delay after each register write
}

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0
	SpeedHz int    `yaml:"speed_hz"` // e.g. 2400000
}

type Demo struct {
	IntervalMs int      `yaml:"interval_ms"`
	Luminance  float64  `yaml:"luminance"`
	Colors     []string `yaml:"colors"`
}

type Config struct {
	Driver   string `yaml:"driver"` // "pwm" | "spi" | "console"
	Pixels   int    `yaml:"pixels"`
	Capacity int    `yaml:"capacity"`
	GPIO     int    `yaml:"gpio"`
	LogLevel string `yaml:"log_level"`

	Clock          Clock  `yaml:"clock"`
	ResetUs        int    `yaml:"reset_us"`
	PeripheralBase uint64 `yaml:"peripheral_base"` // 0 detects the SoC
	MemDevice      string `yaml:"mem_device"`

	SPI  SPI  `yaml:"spi,omitempty"`
	Demo Demo `yaml:"demo"`
}

// Default mirrors ws2812b.DefaultOpts and the demo's red, yellow, green,
// blue cycle.
func Default() *Config {
	return &Config{
		Driver:   "pwm",
		Pixels:   1,
		Capacity: model.DefaultCapacity,
		GPIO:     ws2812b.DefaultOpts.Pin,
		LogLevel: "info",
		Clock: Clock{
			Source:   "pllc",
			Divisor:  float64(bcm283x.DefaultDivisor.Integer),
			SettleUs: int(bcm283x.DefaultSettle / time.Microsecond),
		},
		ResetUs:   int(ws2812b.DefaultOpts.Reset / time.Microsecond),
		MemDevice: regmap.DefaultDevice,
		SPI:       SPI{Dev: "/dev/spidev0.0", SpeedHz: 2400000},
		Demo: Demo{
			IntervalMs: 3000,
			Luminance:  1,
			Colors:     []string{"red", "yellow", "green", "blue"},
		},
	}
}

// Load reads path over Default, so missing keys keep their default.
func Load(path string) (*Config, error) {
	c := Default()
	if err := Apply(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply overwrites the fields of c that path sets.
func Apply(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return errors.Wrapf(model.ErrConfiguration, "config: %s: %v", path, err)
	}
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Level parses LogLevel. An empty level is info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(model.ErrConfiguration, "config: log_level %q", c.LogLevel)
	}
	return l, nil
}

// Interval is the demo color period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Demo.IntervalMs) * time.Millisecond
}

// DriverOpts converts the hardware settings. log may be nil.
func (c *Config) DriverOpts(log *zerolog.Logger) (*ws2812b.Opts, error) {
	src, err := bcm283x.ParseClockSource(c.Clock.Source)
	if err != nil {
		return nil, err
	}
	if c.Clock.Divisor < 1 || math.IsInf(c.Clock.Divisor, 0) || math.IsNaN(c.Clock.Divisor) {
		return nil, errors.Wrapf(model.ErrConfiguration, "config: clock divisor %g", c.Clock.Divisor)
	}
	i := math.Floor(c.Clock.Divisor)
	div := bcm283x.Divisor{Integer: uint32(math.Min(i, math.MaxUint32)), Fraction: c.Clock.Divisor - i}
	if err := div.Validate(); err != nil {
		return nil, err
	}
	if c.ResetUs < 0 {
		return nil, errors.Wrapf(model.ErrConfiguration, "config: reset_us %d", c.ResetUs)
	}

	o := ws2812b.DefaultOpts
	if c.Capacity > 0 {
		o.Capacity = c.Capacity
	}
	if c.GPIO != 0 {
		o.Pin = c.GPIO
	}
	o.Divisor = div
	o.Source = src
	if c.Clock.SettleUs > 0 {
		o.Settle = time.Duration(c.Clock.SettleUs) * time.Microsecond
	}
	o.Reset = time.Duration(c.ResetUs) * time.Microsecond
	o.Base = c.PeripheralBase
	if c.MemDevice != "" && c.MemDevice != regmap.DefaultDevice {
		o.Mapper = &regmap.DevMem{Path: c.MemDevice}
	}
	o.Logger = log
	return &o, nil
}

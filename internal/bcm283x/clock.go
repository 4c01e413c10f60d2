// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis-ws2812b/internal/regmap"
	"github.com/coreman2200/arcaluminis-ws2812b/model"
)

const (
	// 31:24 password
	clockPasswdCtl clockCtl = 0x5A << 24 // PASSWD
	// 23:11 reserved
	clockMashMask clockCtl = 3 << 9 // MASH
	clockMash0    clockCtl = 0 << 9 // src_freq / divI  (ignores divF)
	clockMash1    clockCtl = 1 << 9
	clockFlip     clockCtl = 1 << 8 // FLIP
	clockBusy     clockCtl = 1 << 7 // BUSY
	// 6 reserved
	clockKill    clockCtl = 1 << 5   // KILL
	clockEnable  clockCtl = 1 << 4   // ENAB
	clockSrcMask clockCtl = 0xF << 0 // SRC
)

// clockCtl controls the clock properties.
//
// It must not be changed while busy is set or a glitch may occur.
//
// Page 107
type clockCtl uint32

func (c clockCtl) GoString() string {
	var out []string
	if c&0xFF000000 == clockPasswdCtl {
		c &^= 0xFF000000
		out = append(out, "PWD")
	}
	if m := c & clockMashMask; m != clockMash0 {
		out = append(out, fmt.Sprintf("Mash%d", m>>9))
	}
	c &^= clockMashMask
	if c&clockFlip != 0 {
		out = append(out, "Flip")
		c &^= clockFlip
	}
	if c&clockBusy != 0 {
		out = append(out, "Busy")
		c &^= clockBusy
	}
	if c&clockKill != 0 {
		out = append(out, "Kill")
		c &^= clockKill
	}
	if c&clockEnable != 0 {
		out = append(out, "Enable")
		c &^= clockEnable
	}
	out = append(out, ClockSource(c&clockSrcMask).String())
	c &^= clockSrcMask
	if c != 0 {
		out = append(out, fmt.Sprintf("clockCtl(%d)", c))
	}
	return strings.Join(out, "|")
}

const (
	// 31:24 password
	clockPasswdDiv clockDiv = 0x5A << 24 // PASSWD
	// Integer part of the divisor
	clockDiviShift          = 12
	clockDiviMax            = (1 << 12) - 1
	clockDiviMask  clockDiv = clockDiviMax << clockDiviShift // DIVI
	// Fractional part of the divisor
	clockDivfMask clockDiv = (1 << 12) - 1 // DIVF
	// clockDivfScale is the quantum of the fractional part.
	clockDivfScale = 1024
)

// clockDiv is a 12.12 fixed point value.
//
// Page 108
type clockDiv uint32

func (c clockDiv) GoString() string {
	c &^= clockPasswdDiv
	i := (c & clockDiviMask) >> clockDiviShift
	c &= clockDivfMask
	if c == 0 {
		return fmt.Sprintf("%d.0", i)
	}
	return fmt.Sprintf("%d.(%d/%d)", i, c, clockDivfScale)
}

// ClockSource selects the oscillator feeding the PWM clock divider.
type ClockSource uint8

const (
	SourceGND        ClockSource = 0
	SourceOscillator ClockSource = 1 // 19.2MHz
	SourcePLLA       ClockSource = 4
	SourcePLLC       ClockSource = 5 // 1000MHz, changes with overclock settings
	SourcePLLD       ClockSource = 6 // 500MHz
	SourceHDMI       ClockSource = 7 // 216MHz
)

var sourceNames = map[string]ClockSource{
	"gnd":  SourceGND,
	"osc":  SourceOscillator,
	"plla": SourcePLLA,
	"pllc": SourcePLLC,
	"plld": SourcePLLD,
	"hdmi": SourceHDMI,
}

// ParseClockSource accepts osc, plla, pllc, plld and hdmi.
func ParseClockSource(s string) (ClockSource, error) {
	if src, ok := sourceNames[strings.ToLower(s)]; ok && src != SourceGND {
		return src, nil
	}
	return 0, errors.Wrapf(model.ErrConfiguration, "bcm283x: unknown clock source %q", s)
}

// Frequency is the nominal rate of the source.
func (s ClockSource) Frequency() physic.Frequency {
	switch s {
	case SourceOscillator:
		return 19200 * physic.KiloHertz
	case SourcePLLC:
		return 1000 * physic.MegaHertz
	case SourcePLLD:
		return 500 * physic.MegaHertz
	case SourceHDMI:
		return 216 * physic.MegaHertz
	default:
		return 0
	}
}

func (s ClockSource) String() string {
	switch s {
	case SourceGND:
		return "GND(0Hz)"
	case SourceOscillator:
		return "19.2MHz"
	case SourcePLLA:
		return "PLLA(0Hz)"
	case SourcePLLC:
		return "PLLC(1000MHz)"
	case SourcePLLD:
		return "PLLD(500MHz)"
	case SourceHDMI:
		return "HDMI(216MHz)"
	default:
		return fmt.Sprintf("GND(%d)", uint8(s))
	}
}

// Divisor is the PWM clock divisor. Fraction is in [0, 1) and is quantized
// to 1/1024 steps.
type Divisor struct {
	Integer  uint32
	Fraction float64
}

// DefaultDivisor with SourcePLLC gives a 2.5MHz serializer clock, three wire
// bits per WS2812 data bit.
var DefaultDivisor = Divisor{Integer: 400}

// DivisorFor returns the divisor bringing src down to rate.
func DivisorFor(src, rate physic.Frequency) Divisor {
	if rate <= 0 {
		return Divisor{}
	}
	d := float64(src) / float64(rate)
	i := math.Floor(d)
	return Divisor{Integer: uint32(i), Fraction: d - i}
}

// Validate checks the divisor fits the DIVI and DIVF fields.
func (d Divisor) Validate() error {
	if d.Integer < 1 || d.Integer > clockDiviMax {
		return errors.Wrapf(model.ErrConfiguration, "bcm283x: clock divisor %d not in [1, %d]", d.Integer, clockDiviMax)
	}
	if d.Fraction < 0 || d.Fraction >= 1 || math.IsNaN(d.Fraction) {
		return errors.Wrapf(model.ErrConfiguration, "bcm283x: clock divisor fraction %g not in [0, 1)", d.Fraction)
	}
	return nil
}

// frac is the quantized fractional part, 0 to 1024.
func (d Divisor) frac() uint32 {
	return uint32(math.Round(d.Fraction * clockDivfScale))
}

// word is the CM_PWMDIV value.
func (d Divisor) word() clockDiv {
	return clockPasswdDiv | clockDiv(d.Integer&clockDiviMax)<<clockDiviShift | clockDiv(d.frac())&clockDivfMask
}

// Rate is the serializer bit rate produced from src.
func (d Divisor) Rate(src physic.Frequency) physic.Frequency {
	q := uint64(d.Integer)*clockDivfScale + uint64(d.frac())
	if q == 0 {
		return 0
	}
	return physic.Frequency(uint64(src) * clockDivfScale / q)
}

func (d Divisor) String() string {
	return fmt.Sprintf("%#v", clockDiv(d.word()))
}

// Timing is the settle delay observed after every register write.
type Timing struct {
	// Settle <= 0 means DefaultSettle.
	Settle time.Duration
	// Sleep blocks for the given duration. nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultSettle is the delay the PWM block needs after a write.
const DefaultSettle = time.Millisecond

func (t Timing) wait() {
	d := t.Settle
	if d <= 0 {
		d = DefaultSettle
	}
	if t.Sleep != nil {
		t.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Clock puts the PWM clock and PWM block into a known state.
type Clock struct {
	Timing
	cm  *regmap.Region
	pwm *regmap.Region
	log zerolog.Logger
}

// NewClock binds the clock manager and PWM windows.
func NewClock(cm, pwm *regmap.Region, t Timing, log zerolog.Logger) *Clock {
	return &Clock{Timing: t, cm: cm, pwm: pwm, log: log}
}

// Configure stops the PWM clock, programs div on src, restarts it and leaves
// the PWM block stopped in serializer mode with a 32-bit range.
//
// The hardware gives no feedback here, problems surface later as FIFO error
// flags.
func (c *Clock) Configure(div Divisor, src ClockSource) {
	// Waiting on BUSY doesn't work reliably, kill the clock instead.
	kill := clockPasswdCtl | clockKill
	c.cm.Store(cmPWMCTL, uint32(kill))
	logWrite(c.log, "CM_PWMCTL", kill)
	c.wait()

	c.pwm.Clear(pwmDMAC, uint32(pwmDmacENAB))
	logWrite(c.log, "DMAC", pwmDmac(c.pwm.Load(pwmDMAC)))
	c.wait()

	c.cm.Store(cmPWMDIV, uint32(div.word()))
	logWrite(c.log, "CM_PWMDIV", div.word())
	c.wait()

	ctl := clockPasswdCtl | clockEnable | clockCtl(src)
	if div.frac() != 0 {
		ctl |= clockMash1
	}
	c.cm.Store(cmPWMCTL, uint32(ctl))
	logWrite(c.log, "CM_PWMCTL", ctl)
	c.wait()

	c.pwm.Store(pwmCTL, 0)
	logWrite(c.log, "CTL", pwmCtl(0))
	c.wait()

	c.pwm.Store(pwmRNG1, PWMRange)
	logWrite(c.log, "RNG1", PWMRange)
	c.wait()

	c.pwm.Store(pwmSTA, uint32(statusErrors))
	logWrite(c.log, "STA", statusErrors)
	c.wait()

	c.pwm.Store(pwmCTL, uint32(serializerControl))
	logWrite(c.log, "CTL", serializerControl)
	c.wait()

	c.log.Info().
		Str("divisor", div.String()).
		Str("source", src.String()).
		Str("rate", div.Rate(src.Frequency()).String()).
		Msg("pwm clock configured")
}

func logWrite(log zerolog.Logger, reg string, v interface{}) {
	log.Debug().Str("reg", reg).Str("val", fmt.Sprintf("%#v", v)).Msg("write")
}

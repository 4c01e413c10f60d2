package model

import (
	"image/color"
	"math"
	"sort"
	"strings"
)

// Bit offsets of each channel inside the 24-bit word shifted out to the
// strip. WS2812 parts latch green first, then red, then blue.
const (
	GREEN_OFFSET uint8 = 0x10
	RED_OFFSET   uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

// Color is the state of a single LED.
type Color struct {
	R, G, B uint8
}

// RGB2Color builds a Color from its three channels.
func RGB2Color(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// FromColor converts any color.Color, dropping alpha.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}

// GRB packs the color in transmission order.
func (c Color) GRB() uint32 {
	return uint32(c.G)<<GREEN_OFFSET | uint32(c.R)<<RED_OFFSET | uint32(c.B)<<BLUE_OFFSET
}

// RGBA implements color.Color. LEDs have no alpha so the result is opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}.RGBA()
}

// ToNRGBA returns the opaque image representation of c.
func (c Color) ToNRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Scale multiplies every channel by lum, clamped to [0, 1]. Channels are
// truncated, not rounded.
func (c Color) Scale(lum float64) Color {
	lum = math.Max(0, math.Min(1, lum))
	return Color{
		R: uint8(float64(c.R) * lum),
		G: uint8(float64(c.G) * lum),
		B: uint8(float64(c.B) * lum),
	}
}

var namedColors = map[string]Color{
	"black":   {},
	"off":     {},
	"red":     {R: 255},
	"green":   {G: 255},
	"blue":    {B: 255},
	"yellow":  {R: 255, G: 255},
	"cyan":    {G: 255, B: 255},
	"magenta": {R: 255, B: 255},
	"white":   {R: 255, G: 255, B: 255},
	"orange":  {R: 255, G: 128},
	"purple":  {R: 128, B: 128},
}

// Named looks up a color by name, case insensitive.
func Named(name string) (Color, bool) {
	c, ok := namedColors[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ColorNames lists the names accepted by Named.
func ColorNames() []string {
	names := make([]string, 0, len(namedColors))
	for k := range namedColors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Package waveform turns pixel colors into the bitstream a WS2812 chain
// expects when the PWM serializer shifts out three wire bits per data bit.
//
// Data bit 1 is sent as 1,1,0 and data bit 0 as 1,0,0. Each pixel is sent
// as 24 bits, green, red, blue, most significant bit first.
package waveform

import (
	"math/bits"

	"github.com/coreman2200/arcaluminis-ws2812b/model"
)

const (
	// BitsPerPixel is the number of data bits per LED.
	BitsPerPixel = 24
	// WireBitsPerBit is the number of serializer bits per data bit.
	WireBitsPerBit = 3
	// WordBits is the width of a FIFO word.
	WordBits = 32

	wireBitsPerPixel = BitsPerPixel * WireBitsPerBit
)

// Waveform is a sequence of FIFO words. Stream bit b lives in word b/32 at
// bit b%32.
type Waveform []uint32

// WordCount is the number of words needed for n pixels.
func WordCount(n int) int {
	return (n*wireBitsPerPixel + WordBits - 1) / WordBits
}

// Encode builds the waveform for pixels. The result is freshly allocated on
// every call.
func Encode(pixels []model.Color) Waveform {
	w := make(Waveform, WordCount(len(pixels)))
	pos := 0
	for _, p := range pixels {
		grb := p.GRB()
		for j := BitsPerPixel - 1; j >= 0; j-- {
			// Every wire pattern starts high and ends low.
			w.set(pos)
			if grb&(1<<uint(j)) != 0 {
				w.set(pos + 1)
			}
			pos += WireBitsPerBit
		}
	}
	return w
}

func (w Waveform) set(pos int) {
	w[pos/WordBits] |= 1 << uint(pos%WordBits)
}

// Bit reports stream bit pos.
func (w Waveform) Bit(pos int) bool {
	return w[pos/WordBits]&(1<<uint(pos%WordBits)) != 0
}

// BitLen is the number of meaningful stream bits for n pixels.
func BitLen(n int) int {
	return n * wireBitsPerPixel
}

// Reversed returns a copy with every word bit-reversed. The serializer shifts
// each word out MSB first, the opposite of the stream bit numbering.
func (w Waveform) Reversed() Waveform {
	out := make(Waveform, len(w))
	for i, v := range w {
		out[i] = ReverseWord(v)
	}
	return out
}

// ReverseWord mirrors the bit order of v.
func ReverseWord(v uint32) uint32 {
	return bits.Reverse32(v)
}

// String renders every stream bit as '0' or '1', in stream order.
func (w Waveform) String() string {
	b := make([]byte, len(w)*WordBits)
	for i := range b {
		b[i] = '0'
		if w.Bit(i) {
			b[i] = '1'
		}
	}
	return string(b)
}

package model

import (
	"image"

	"github.com/pkg/errors"
)

// DefaultCapacity bounds the length of a chain when no capacity is given.
const DefaultCapacity = 1024

// PixelBuffer holds the desired state of every LED in the chain. Its length
// is fixed when it is created.
type PixelBuffer struct {
	capacity int
	pixels   []Color
}

// NewPixelBuffer returns a zeroed buffer of n pixels. capacity <= 0 selects
// DefaultCapacity.
func NewPixelBuffer(n, capacity int) (*PixelBuffer, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if n <= 0 || n > capacity {
		return nil, errors.Wrapf(ErrConfiguration, "pixel count %d not in [1, %d]", n, capacity)
	}
	return &PixelBuffer{capacity: capacity, pixels: make([]Color, n)}, nil
}

// Len is the number of pixels in the chain.
func (p *PixelBuffer) Len() int {
	return len(p.pixels)
}

// Cap is the hard upper bound the buffer was created with.
func (p *PixelBuffer) Cap() int {
	return p.capacity
}

func (p *PixelBuffer) check(i int) error {
	if i < 0 || i >= len(p.pixels) {
		return errors.Wrapf(ErrIndex, "pixel %d not in [0, %d)", i, len(p.pixels))
	}
	return nil
}

// Set stores c at index i. The buffer is left untouched on error.
func (p *PixelBuffer) Set(i int, c Color) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.pixels[i] = c
	return nil
}

// At returns the color at index i.
func (p *PixelBuffer) At(i int) (Color, error) {
	if err := p.check(i); err != nil {
		return Color{}, err
	}
	return p.pixels[i], nil
}

// Fill sets every pixel to c.
func (p *PixelBuffer) Fill(c Color) {
	for i := range p.pixels {
		p.pixels[i] = c
	}
}

// Clear turns every pixel off.
func (p *PixelBuffer) Clear() {
	p.Fill(Color{})
}

// Pixels returns a copy of the buffer contents.
func (p *PixelBuffer) Pixels() []Color {
	out := make([]Color, len(p.pixels))
	copy(out, p.pixels)
	return out
}

// Image renders the buffer as a single row, one pixel per LED.
func (p *PixelBuffer) Image() *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(p.pixels), 1))
	for x := 0; x < im.Rect.Max.X; x++ {
		im.SetNRGBA(x, 0, p.pixels[x].ToNRGBA())
	}
	return im
}

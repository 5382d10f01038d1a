// Package delay provides a fractional delay line for onset and
// propagation delays.
package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/interp"
)

// ErrSize reports a non-positive maximum delay.
var ErrSize = fmt.Errorf("delay: %w", core.ErrConfiguration)

// Line is a circular delay line. Read(0) returns the most recently
// written sample.
type Line struct {
	buffer   []float64
	mask     int
	writePos int
	maxDelay int
	mode     interp.Mode
}

// Option configures a Line.
type Option func(*Line)

// WithMode selects the fractional interpolation method. Default Hermite.
func WithMode(m interp.Mode) Option {
	return func(d *Line) { d.mode = m }
}

// New returns a delay line that can delay by up to maxDelay samples.
func New(maxDelay int, opts ...Option) (*Line, error) {
	if maxDelay <= 0 {
		return nil, fmt.Errorf("%w: max delay %d", ErrSize, maxDelay)
	}

	// Hermite reads one sample beyond the integer delay.
	size := 1
	for size < maxDelay+3 {
		size <<= 1
	}

	d := &Line{
		buffer:   make([]float64, size),
		mask:     size - 1,
		maxDelay: maxDelay,
	}
	for _, o := range opts {
		o(d)
	}

	return d, nil
}

// MaxDelay returns the largest supported delay in samples.
func (d *Line) MaxDelay() int { return d.maxDelay }

// Mode returns the interpolation method.
func (d *Line) Mode() interp.Mode { return d.mode }

// Write pushes one sample.
func (d *Line) Write(sample float64) {
	d.writePos = (d.writePos + 1) & d.mask
	d.buffer[d.writePos] = sample
}

// Read reads an integer delay in samples.
func (d *Line) Read(delay int) float64 {
	return d.buffer[(d.writePos-delay)&d.mask]
}

// ReadFractional reads a delay in samples, clamped to [0, MaxDelay], with
// the configured interpolation.
func (d *Line) ReadFractional(delay float64) float64 {
	delay = core.Clamp(delay, 0, float64(d.maxDelay))

	switch d.mode {
	case interp.Nearest:
		return d.Read(int(math.Round(delay)))
	case interp.Linear:
		p := int(delay)
		return interp.Linear2(delay-float64(p), d.Read(p), d.Read(p+1))
	default:
		p := int(delay)
		t := delay - float64(p)
		if t == 0 {
			return d.Read(p)
		}

		return interp.Hermite4(t, d.Read(max(p-1, 0)), d.Read(p), d.Read(p+1), d.Read(p+2))
	}
}

// Process delays src into dst with the delay moving linearly from "from"
// to "to" across the block, reaching "to" on the last sample. dst may alias
// src.
func (d *Line) Process(dst, src []float64, from, to float64) {
	n := len(src)
	if n == 0 {
		return
	}

	step := (to - from) / float64(n)
	for i, x := range src[:n] {
		d.Write(x)
		dst[i] = d.ReadFractional(from + step*float64(i+1))
	}
}

// Reset clears line state.
func (d *Line) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

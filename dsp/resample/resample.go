package resample

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

var (
	// ErrRate reports a sample rate that is not a positive integer or a
	// ratio too fine to realize.
	ErrRate = fmt.Errorf("resample: %w", core.ErrInvalidArgument)
	// ErrShape reports a channel count or slice length mismatch.
	ErrShape = fmt.Errorf("resample: %w", core.ErrInvalidInput)
)

// maxPhases bounds the reduced interpolation factor.
const maxPhases = 4096

// Quality selects the anti-aliasing filter.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityBest
)

type profile struct {
	taps   int
	beta   float64
	cutoff float64
}

func (q Quality) profile() profile {
	switch q {
	case QualityFast:
		return profile{taps: 16, beta: 5, cutoff: 0.88}
	case QualityBest:
		return profile{taps: 64, beta: 9, cutoff: 0.96}
	default:
		return profile{taps: 32, beta: 7.5, cutoff: 0.92}
	}
}

// Option configures a Converter.
type Option func(*profile)

// WithQuality selects a filter profile. Later options override its fields.
func WithQuality(q Quality) Option {
	return func(p *profile) { *p = q.profile() }
}

// WithTapsPerPhase sets the filter length per polyphase branch.
func WithTapsPerPhase(n int) Option {
	return func(p *profile) {
		if n > 0 {
			p.taps = n
		}
	}
}

// Converter resamples interleaved frames. It is not safe for concurrent
// use.
type Converter struct {
	inRate, outRate int
	up, down        int
	channels        int

	phases [][]float64 // phases[p][k] = h[p+k*up]
	taps   int

	// hist holds a doubled ring per channel so that the newest taps
	// samples are contiguous, newest first, at hist[ch][pos:pos+taps].
	hist [][]float64
	pos  int
	acc  int // phase accumulator in [0, up)

	zeros []float64
}

// New returns a converter from inRate to outRate for the given number of
// interleaved channels.
func New(inRate, outRate float64, channels int, opts ...Option) (*Converter, error) {
	in, okIn := integerRate(inRate)
	out, okOut := integerRate(outRate)

	if !okIn || !okOut {
		return nil, fmt.Errorf("%w: %g Hz to %g Hz", ErrRate, inRate, outRate)
	}

	if channels < 1 || channels > core.MaxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrShape, channels)
	}

	g := gcd(in, out)
	up, down := out/g, in/g

	if up > maxPhases || down > maxPhases {
		return nil, fmt.Errorf("%w: ratio %d/%d too fine", ErrRate, up, down)
	}

	p := QualityBalanced.profile()
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}

	c := &Converter{
		inRate:   in,
		outRate:  out,
		up:       up,
		down:     down,
		channels: channels,
		phases:   design(up, down, p),
		taps:     p.taps,
		hist:     make([][]float64, channels),
		zeros:    make([]float64, p.taps*channels),
	}

	for ch := range c.hist {
		c.hist[ch] = make([]float64, 2*p.taps)
	}

	return c, nil
}

// Ratio returns the reduced conversion factors: out = in * up / down.
func (c *Converter) Ratio() (up, down int) { return c.up, c.down }

// Channels returns the number of interleaved channels.
func (c *Converter) Channels() int { return c.channels }

// InputRate returns the source sample rate.
func (c *Converter) InputRate() int { return c.inRate }

// OutputRate returns the target sample rate.
func (c *Converter) OutputRate() int { return c.outRate }

// TapsPerPhase returns the filter length per polyphase branch.
func (c *Converter) TapsPerPhase() int { return c.taps }

// Delay returns the group delay of the filter in output frames.
func (c *Converter) Delay() float64 {
	return float64(c.taps*c.up-1) / 2 / float64(c.down)
}

// OutputFrames returns exactly how many frames the next Process call
// produces from the given number of input frames.
func (c *Converter) OutputFrames(inFrames int) int {
	span := c.up*inFrames - c.acc
	if inFrames <= 0 || span <= 0 {
		return 0
	}

	return (span + c.down - 1) / c.down
}

// MaxOutputFrames bounds OutputFrames for any converter state.
func (c *Converter) MaxOutputFrames(inFrames int) int {
	if inFrames <= 0 {
		return 0
	}

	return (c.up*inFrames+c.down-1)/c.down + 1
}

// Process converts the interleaved frames in src into dst and returns the
// number of frames written. dst must hold OutputFrames(len(src)/Channels())
// frames. Process does not allocate.
func (c *Converter) Process(dst, src []float64) (int, error) {
	if len(src)%c.channels != 0 {
		return 0, fmt.Errorf("%w: %d samples for %d channels", ErrShape, len(src), c.channels)
	}

	frames := len(src) / c.channels
	if need := c.OutputFrames(frames) * c.channels; len(dst) < need {
		return 0, fmt.Errorf("%w: dst holds %d samples, need %d", ErrShape, len(dst), need)
	}

	written := 0

	for f := range frames {
		c.pos--
		if c.pos < 0 {
			c.pos = c.taps - 1
		}

		frame := src[f*c.channels : (f+1)*c.channels]
		for ch, x := range frame {
			c.hist[ch][c.pos] = x
			c.hist[ch][c.pos+c.taps] = x
		}

		for ; c.acc < c.up; c.acc += c.down {
			h := c.phases[c.acc]
			out := dst[written*c.channels : (written+1)*c.channels]

			for ch := range out {
				out[ch] = vector.Dot(h, c.hist[ch][c.pos:])
			}

			written++
		}

		c.acc -= c.up
	}

	return written, nil
}

// Flush pushes one filter length of silence through the converter so
// that the tail of the last input block reaches the output. dst must hold
// MaxOutputFrames(TapsPerPhase()) frames.
func (c *Converter) Flush(dst []float64) (int, error) {
	return c.Process(dst, c.zeros)
}

// Reset clears the filter history.
func (c *Converter) Reset() {
	for _, h := range c.hist {
		clear(h)
	}

	c.pos, c.acc = 0, 0
}

func integerRate(r float64) (int, bool) {
	if !(r >= 1 && r <= 10*core.MaxSampleRate) || r != math.Trunc(r) {
		return 0, false
	}

	return int(r), true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

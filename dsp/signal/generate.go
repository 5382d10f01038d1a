// Package signal generates deterministic test and probe signals.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

// ErrInvalidLength is returned for non-positive sample counts.
var ErrInvalidLength = errors.New("signal: length must be > 0")

// Tone is one sinusoidal component of a probe.
type Tone struct {
	Frequency float64
	Amplitude float64
	Phase     float64
}

// Generator creates deterministic signals at a configured sample rate.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the noise seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a generator from processor options.
func NewGenerator(opts ...core.ProcessorOption) *Generator {
	return NewGeneratorWithOptions(opts)
}

// NewGeneratorWithOptions creates a generator with processor and signal
// options.
func NewGeneratorWithOptions(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.ApplyProcessorOptions(coreOpts...),
		seed: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// SampleRate returns the generator sample rate.
func (g *Generator) SampleRate() float64 {
	return g.cfg.SampleRate
}

// Sine returns samples of amplitude*sin(2*pi*f*n/fs).
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	return g.Tones(samples, Tone{Frequency: freqHz, Amplitude: amplitude})
}

// Tones returns the sum of the given sinusoids.
func (g *Generator) Tones(samples int, tones ...Tone) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	out := make([]float64, samples)
	if err := g.Fill(out, tones...); err != nil {
		return nil, err
	}
	return out, nil
}

// Fill overwrites dst with the sum of the given sinusoids. It does not
// allocate, so probes can be rendered into aligned or pooled storage.
func (g *Generator) Fill(dst []float64, tones ...Tone) error {
	for _, tone := range tones {
		if tone.Frequency < 0 || tone.Frequency >= g.cfg.SampleRate/2 {
			return fmt.Errorf("signal: tone %.1f Hz outside (0, fs/2)", tone.Frequency)
		}
	}
	clear(dst)
	for _, tone := range tones {
		step := 2 * math.Pi * tone.Frequency / g.cfg.SampleRate
		for i := range dst {
			dst[i] += tone.Amplitude * math.Sin(step*float64(i)+tone.Phase)
		}
	}
	return nil
}

// WhiteNoise returns uniform noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("signal: noise amplitude must be >= 0: %f", amplitude)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out, nil
}

// Impulse returns a unit impulse at index at.
func Impulse(samples, at int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if at < 0 || at >= samples {
		return nil, fmt.Errorf("signal: impulse position %d outside [0, %d)", at, samples)
	}
	out := make([]float64, samples)
	out[at] = 1
	return out, nil
}

package stage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
)

// MaxBands is the largest supported equalizer band count.
const MaxBands = 31

// BandSetting is the user-visible state of one equalizer band.
type BandSetting struct {
	design.Band `yaml:",inline"`

	Enabled bool `yaml:"enabled"`
}

// eqSnapshot is an immutable parameter set. coeffs[i] is the design for
// bands[i]; active[i] is false for disabled bands and 0 dB bands.
type eqSnapshot struct {
	version uint64
	bands   []BandSetting
	coeffs  []biquad.Coefficients
	active  []bool
}

// Equalizer is a cascade of peaking bands processed in index order. Each
// channel owns its own filter state; all channels share one parameter set.
type Equalizer struct {
	sampleRate float64

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[eqSnapshot]

	chains   []*biquad.Chain
	versions []uint64
}

// NewEqualizer builds an n-band equalizer for the given channel count with
// all bands at 0 dB.
func NewEqualizer(sampleRate float64, channels, bands int) (*Equalizer, error) {
	if bands < 1 || bands > MaxBands {
		return nil, fmt.Errorf("%w: band count %d outside [1, %d]", ErrConfiguration, bands, MaxBands)
	}

	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrConfiguration, channels)
	}

	e := &Equalizer{sampleRate: sampleRate}
	e.snap.Store(e.build(0, DefaultBands(bands)))

	e.chains = make([]*biquad.Chain, channels)
	e.versions = make([]uint64, channels)

	s := e.snap.Load()
	for ch := range e.chains {
		e.chains[ch] = biquad.NewChain(s.coeffs)
		applyActive(e.chains[ch], s.active)
	}

	return e, nil
}

// DefaultBands returns n enabled bands at 0 dB on the default centres.
func DefaultBands(n int) []BandSetting {
	centres := design.BandCenters(n)
	q := design.BandQ(n)

	out := make([]BandSetting, n)
	for i, f := range centres {
		out[i] = BandSetting{Band: design.Band{Frequency: f, Q: q}, Enabled: true}
	}

	return out
}

func (e *Equalizer) build(version uint64, bands []BandSetting) *eqSnapshot {
	s := &eqSnapshot{
		version: version,
		bands:   bands,
		coeffs:  make([]biquad.Coefficients, len(bands)),
		active:  make([]bool, len(bands)),
	}

	for i := range bands {
		bands[i].Band = bands[i].Clamped(e.sampleRate)
		s.coeffs[i] = bands[i].Coefficients(e.sampleRate)
		s.active[i] = bands[i].Enabled && !s.coeffs[i].IsIdentity()
	}

	return s
}

// publish copies the current bands, lets mutate edit the copy and stores
// the result as the next snapshot.
func (e *Equalizer) publish(index int, mutate func(*BandSetting)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if index < 0 || index >= len(cur.bands) {
		return fmt.Errorf("%w: band index %d outside [0, %d)", ErrInvalidArgument, index, len(cur.bands))
	}

	bands := append([]BandSetting(nil), cur.bands...)
	mutate(&bands[index])
	e.snap.Store(e.build(cur.version+1, bands))

	return nil
}

// SetBand sets centre frequency, gain and Q of band index. Values are
// clamped to the ranges documented in package design.
func (e *Equalizer) SetBand(index int, freq, gainDB, q float64) error {
	return e.publish(index, func(b *BandSetting) {
		b.Band = design.Band{Frequency: freq, GainDB: gainDB, Q: q}
	})
}

// SetBandEnabled includes or excludes band index from the cascade.
func (e *Equalizer) SetBandEnabled(index int, enabled bool) error {
	return e.publish(index, func(b *BandSetting) { b.Enabled = enabled })
}

// Band returns the clamped setting of band index.
func (e *Equalizer) Band(index int) (BandSetting, error) {
	s := e.snap.Load()
	if index < 0 || index >= len(s.bands) {
		return BandSetting{}, fmt.Errorf("%w: band index %d outside [0, %d)", ErrInvalidArgument, index, len(s.bands))
	}

	return s.bands[index], nil
}

// Bands returns a copy of all band settings.
func (e *Equalizer) Bands() []BandSetting {
	return append([]BandSetting(nil), e.snap.Load().bands...)
}

// SetBands replaces every band at once. len(bands) must equal the band
// count.
func (e *Equalizer) SetBands(bands []BandSetting) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if len(bands) != len(cur.bands) {
		return fmt.Errorf("%w: %d bands, want %d", ErrInvalidArgument, len(bands), len(cur.bands))
	}

	e.snap.Store(e.build(cur.version+1, append([]BandSetting(nil), bands...)))

	return nil
}

// ResetBands restores the default layout at 0 dB with every band enabled.
func (e *Equalizer) ResetBands() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	e.snap.Store(e.build(cur.version+1, DefaultBands(len(cur.bands))))
}

// NumBands returns the band count.
func (e *Equalizer) NumBands() int { return len(e.snap.Load().bands) }

// Process filters x in place with channel ch's state. A newer parameter
// snapshot is adopted here, keeping the delay lines of unchanged bands.
func (e *Equalizer) Process(ch int, x []float64) {
	e.process(e.snap.Load(), ch, x)
}

func (e *Equalizer) process(s *eqSnapshot, ch int, x []float64) {
	chain := e.chains[ch]

	if e.versions[ch] != s.version {
		chain.UpdateCoefficients(s.coeffs)
		applyActive(chain, s.active)
		e.versions[ch] = s.version
	}

	chain.ProcessBlock(x)
}

// Reset clears the filter state of every channel.
func (e *Equalizer) Reset() {
	for _, c := range e.chains {
		c.Reset()
	}
}

// MagnitudeDB returns the response of the current parameter set at freq.
func (e *Equalizer) MagnitudeDB(freq float64) float64 {
	s := e.snap.Load()

	db := 0.0
	for i, c := range s.coeffs {
		if s.active[i] {
			db += c.MagnitudeDB(freq, e.sampleRate)
		}
	}

	return db
}

func applyActive(c *biquad.Chain, active []bool) {
	for i, on := range active {
		c.SetBypass(i, !on)
	}
}

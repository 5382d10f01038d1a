package room

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cwbudde/algo-spatial/dsp/buffer"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
)

// Correction limits and defaults.
const (
	DefaultMaxBoostDB        = 6.0
	MaxBoostLimitDB          = 12.0
	MaxCutDB                 = 24.0
	DefaultTransitionBuffers = 8
	// DefaultTHDNThreshold is the gate threshold in percent.
	DefaultTHDNThreshold = 0.0005
)

// ErrQualityThresholdExceeded is returned when a proposed correction
// distorts the probe beyond the threshold.
var ErrQualityThresholdExceeded = fmt.Errorf("room: %w", core.ErrQualityThresholdExceeded)

type correctionConfig struct {
	maxBoost   float64
	transition int
	threshold  float64
}

// CorrectionOption configures a CorrectionFilter.
type CorrectionOption func(*correctionConfig)

// WithMaxBoostDB limits the boost of any band, in [0, MaxBoostLimitDB].
func WithMaxBoostDB(db float64) CorrectionOption {
	return func(c *correctionConfig) { c.maxBoost = db }
}

// WithTransitionBuffers sets how many buffers a gain change takes.
func WithTransitionBuffers(n int) CorrectionOption {
	return func(c *correctionConfig) { c.transition = n }
}

// WithTHDNThreshold sets the gate threshold in percent, in (0, 1].
func WithTHDNThreshold(percent float64) CorrectionOption {
	return func(c *correctionConfig) { c.threshold = percent }
}

// CorrectionFilter is a per-channel cascade of peaking sections, one per
// band centre. New gains only arrive through ProposeCorrection and are
// reached gradually: Advance moves the active gains a step towards the
// target once per buffer.
//
// ProposeCorrection may be called from any goroutine. Advance, Process,
// ProcessChannel, Gains and Reset belong to the processing goroutine.
type CorrectionFilter struct {
	sampleRate float64
	centres    []float64
	q          float64
	cfg        correctionConfig

	mu      sync.Mutex // guards target, version and thdn
	target  []float64
	version uint64
	thdn    float64

	seen   uint64
	from   []float64
	goal   []float64
	active []float64
	step   int
	coeffs []biquad.Coefficients
	chains []*biquad.Chain
}

// NewCorrectionFilter returns a flat filter for channels channels.
func NewCorrectionFilter(sampleRate float64, channels int, centres []float64, opts ...CorrectionOption) (*CorrectionFilter, error) {
	cfg := correctionConfig{
		maxBoost:   DefaultMaxBoostDB,
		transition: DefaultTransitionBuffers,
		threshold:  DefaultTHDNThreshold,
	}

	for _, o := range opts {
		o(&cfg)
	}

	switch {
	case !core.ValidSampleRate(sampleRate):
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidArgument, sampleRate)
	case channels < 1:
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidArgument, channels)
	case len(centres) == 0:
		return nil, fmt.Errorf("%w: no band centres", ErrInvalidArgument)
	case !(cfg.maxBoost >= 0 && cfg.maxBoost <= MaxBoostLimitDB):
		return nil, fmt.Errorf("%w: max boost %g dB outside [0, %g]", ErrInvalidArgument, cfg.maxBoost, MaxBoostLimitDB)
	case cfg.transition < 1:
		return nil, fmt.Errorf("%w: %d transition buffers", ErrInvalidArgument, cfg.transition)
	case !(cfg.threshold > 0 && cfg.threshold <= 1):
		return nil, fmt.Errorf("%w: THD+N threshold %g%% outside (0, 1]", ErrInvalidArgument, cfg.threshold)
	}

	for _, f := range centres {
		if !(f > 0) || f >= sampleRate/2 {
			return nil, fmt.Errorf("%w: centre %g Hz", ErrInvalidArgument, f)
		}
	}

	n := len(centres)
	f := &CorrectionFilter{
		sampleRate: sampleRate,
		centres:    slices.Clone(centres),
		q:          design.BandQ(n),
		cfg:        cfg,
		target:     make([]float64, n),
		from:       make([]float64, n),
		goal:       make([]float64, n),
		active:     make([]float64, n),
		step:       cfg.transition,
		coeffs:     make([]biquad.Coefficients, n),
		chains:     make([]*biquad.Chain, channels),
	}

	f.design(f.active)

	for ch := range f.chains {
		f.chains[ch] = biquad.NewChain(f.coeffs)
		bypassIdentity(f.chains[ch], f.coeffs)
	}

	return f, nil
}

// Centres returns the band centre frequencies.
func (f *CorrectionFilter) Centres() []float64 { return slices.Clone(f.centres) }

// Channels returns the number of channels.
func (f *CorrectionFilter) Channels() int { return len(f.chains) }

// SampleRate returns the design rate in Hz.
func (f *CorrectionFilter) SampleRate() float64 { return f.sampleRate }

// MaxBoostDB returns the boost limit.
func (f *CorrectionFilter) MaxBoostDB() float64 { return f.cfg.maxBoost }

// TransitionBuffers returns the number of buffers a change takes.
func (f *CorrectionFilter) TransitionBuffers() int { return f.cfg.transition }

// Target returns the most recently accepted gains.
func (f *CorrectionFilter) Target() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.target)
}

// LastTHDN returns the THD+N in percent measured for the accepted target,
// or 0 before the first accepted update.
func (f *CorrectionFilter) LastTHDN() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.thdn
}

// Gains returns the gains currently applied.
func (f *CorrectionFilter) Gains() []float64 { return slices.Clone(f.active) }

// Transitioning reports whether the active gains still move towards the
// last target seen by Advance.
func (f *CorrectionFilter) Transitioning() bool { return f.step < f.cfg.transition }

// Advance picks up a newly accepted target and moves the active gains one
// step. Call it once per buffer before processing the channels.
func (f *CorrectionFilter) Advance() {
	f.mu.Lock()
	if f.version != f.seen {
		f.seen = f.version
		copy(f.goal, f.target)
		copy(f.from, f.active)
		f.step = 0
	}
	f.mu.Unlock()

	if f.step >= f.cfg.transition {
		return
	}

	f.step++

	if f.step == f.cfg.transition {
		copy(f.active, f.goal)
	} else {
		t := float64(f.step) / float64(f.cfg.transition)
		for i := range f.active {
			f.active[i] = f.from[i] + t*(f.goal[i]-f.from[i])
		}
	}

	f.design(f.active)

	for _, c := range f.chains {
		c.UpdateCoefficients(f.coeffs)
		bypassIdentity(c, f.coeffs)
	}
}

// ProcessChannel filters x in place with the state of channel ch.
func (f *CorrectionFilter) ProcessChannel(ch int, x []float64) error {
	if ch < 0 || ch >= len(f.chains) {
		return fmt.Errorf("%w: channel %d of %d", ErrInvalidArgument, ch, len(f.chains))
	}

	f.chains[ch].ProcessBlock(x)

	return nil
}

// Process advances the transition and filters every channel of a planar
// buffer in place.
func (f *CorrectionFilter) Process(buf *buffer.Buffer) error {
	if buf.Layout() != buffer.LayoutPlanar || buf.Channels() != len(f.chains) {
		return fmt.Errorf("%w: want %d planar channels, got %d %s",
			ErrInvalidArgument, len(f.chains), buf.Channels(), buf.Layout())
	}

	f.Advance()

	for ch := range f.chains {
		f.chains[ch].ProcessBlock(buf.Channel(ch))
	}

	return nil
}

// Reset clears the filter state. Gains are kept.
func (f *CorrectionFilter) Reset() {
	for _, c := range f.chains {
		c.Reset()
	}
}

func (f *CorrectionFilter) design(gains []float64) {
	for i, g := range gains {
		f.coeffs[i] = bandCoefficients(f.centres[i], g, f.q, f.sampleRate)
	}
}

func bandCoefficients(centre, gainDB, q, sampleRate float64) biquad.Coefficients {
	return design.Band{Frequency: centre, GainDB: gainDB, Q: q}.Coefficients(sampleRate)
}

func bypassIdentity(c *biquad.Chain, coeffs []biquad.Coefficients) {
	for i := range coeffs {
		c.SetBypass(i, coeffs[i].IsIdentity())
	}
}

package biquad

import "github.com/cwbudde/algo-spatial/dsp/vector"

// Chain is an ordered cascade of sections processed in series.
type Chain struct {
	sections []Section
	bypass   []bool
	gain     float64
}

type chainConfig struct {
	gain float64
}

// ChainOption configures a Chain.
type ChainOption func(*chainConfig)

// WithGain sets a gain applied to the input before the first section.
// Default is 1.
func WithGain(g float64) ChainOption {
	return func(cfg *chainConfig) { cfg.gain = g }
}

// NewChain creates a cascade with one section per coefficient set.
func NewChain(coeffs []Coefficients, opts ...ChainOption) *Chain {
	cfg := chainConfig{gain: 1}
	for _, o := range opts {
		o(&cfg)
	}

	c := &Chain{
		sections: make([]Section, len(coeffs)),
		bypass:   make([]bool, len(coeffs)),
		gain:     cfg.gain,
	}
	for i := range coeffs {
		c.sections[i].Coefficients = coeffs[i]
	}

	return c
}

// ProcessSample cascades x through every active section.
func (c *Chain) ProcessSample(x float64) float64 {
	x *= c.gain
	for i := range c.sections {
		if c.bypass[i] {
			continue
		}
		x = c.sections[i].ProcessSample(x)
	}

	return x
}

// ProcessBlock filters buf in place through every active section.
func (c *Chain) ProcessBlock(buf []float64) {
	if c.gain != 1 {
		vector.Scale(buf, buf, c.gain)
	}

	for i := range c.sections {
		if c.bypass[i] {
			continue
		}
		c.sections[i].ProcessBlock(buf)
	}
}

// Reset clears all section states.
func (c *Chain) Reset() {
	for i := range c.sections {
		c.sections[i].Reset()
	}
}

// NumSections returns the number of sections, bypassed ones included.
func (c *Chain) NumSections() int {
	return len(c.sections)
}

// Gain returns the input gain.
func (c *Chain) Gain() float64 { return c.gain }

// SetGain updates the input gain.
func (c *Chain) SetGain(g float64) { c.gain = g }

// SetBypass excludes section i from processing. A bypassed section keeps
// its state but is not advanced; re-enabling it resets it so stale state
// does not ring into the signal.
func (c *Chain) SetBypass(i int, bypass bool) {
	if c.bypass[i] && !bypass {
		c.sections[i].Reset()
	}
	c.bypass[i] = bypass
}

// Bypassed reports whether section i is bypassed.
func (c *Chain) Bypassed(i int) bool { return c.bypass[i] }

// UpdateCoefficients replaces the coefficients. When the section count is
// unchanged every section keeps its delay-line state and bypass flag; a
// different count rebuilds the chain with zero state.
func (c *Chain) UpdateCoefficients(coeffs []Coefficients) {
	if len(coeffs) == len(c.sections) {
		for i := range c.sections {
			c.sections[i].Coefficients = coeffs[i]
		}

		return
	}

	c.sections = make([]Section, len(coeffs))
	c.bypass = make([]bool, len(coeffs))
	for i := range coeffs {
		c.sections[i].Coefficients = coeffs[i]
	}
}

// Section returns a pointer to section i.
func (c *Chain) Section(i int) *Section {
	return &c.sections[i]
}

// State returns a snapshot of all section states.
func (c *Chain) State() [][2]float64 {
	states := make([][2]float64, len(c.sections))
	for i := range c.sections {
		states[i] = c.sections[i].State()
	}

	return states
}

// SetState restores saved section states. len(states) must match
// NumSections.
func (c *Chain) SetState(states [][2]float64) {
	for i := range c.sections {
		c.sections[i].SetState(states[i])
	}
}

//nolint:funcorder
package biquad

import (
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/core"
	archregistry "github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/registry"
)

// Coefficients holds the transfer function coefficients for a single
// second-order section. a0 is normalized to 1 and not stored.
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity is the pass-through section.
var Identity = Coefficients{B0: 1}

// IsIdentity reports whether c passes its input through unchanged.
func (c Coefficients) IsIdentity() bool {
	return c == Identity
}

// Section is a single biquad with coefficients and delay-line state.
type Section struct {
	Coefficients

	d0, d1 float64
}

var (
	processBlockImpl     archregistry.ProcessBlockFn
	processBlockName     string
	processBlockInitOnce sync.Once
)

// NewSection returns a Section with the given coefficients and zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// ProcessSample filters one sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// ProcessBlock filters buf in place and flushes denormal state afterwards.
// It does not allocate.
func (s *Section) ProcessBlock(buf []float64) {
	if len(buf) == 0 {
		return
	}
	processBlockInitOnce.Do(initProcessBlockKernel)

	coeffs := archregistry.Coefficients{
		B0: s.B0,
		B1: s.B1,
		B2: s.B2,
		A1: s.A1,
		A2: s.A2,
	}

	d0, d1 := processBlockImpl(coeffs, s.d0, s.d1, buf)
	s.d0 = core.FlushDenormal(d0)
	s.d1 = core.FlushDenormal(d1)
}

func initProcessBlockKernel() {
	entry := archregistry.Global.Lookup(cpu.DetectFeatures())
	if entry == nil {
		panic("biquad: no ProcessBlock kernel registered")
	}

	if entry.ProcessBlock == nil {
		panic("biquad: selected kernel missing ProcessBlock")
	}

	processBlockImpl = entry.ProcessBlock
	processBlockName = entry.Name
}

// Kernel returns the name of the block kernel selected for this CPU.
func Kernel() string {
	processBlockInitOnce.Do(initProcessBlockKernel)
	return processBlockName
}

// Reset clears the delay line.
func (s *Section) Reset() {
	s.d0 = 0
	s.d1 = 0
}

// State returns the delay-line state [d0, d1].
func (s *Section) State() [2]float64 {
	return [2]float64{s.d0, s.d1}
}

// SetState restores a saved delay-line state.
func (s *Section) SetState(state [2]float64) {
	s.d0 = state[0]
	s.d1 = state[1]
}

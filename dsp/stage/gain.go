package stage

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

// Gain limits in dB, both inclusive.
const (
	MinGainDB = -120.0
	MaxGainDB = 12.0
)

// Gain is a linear gain whose target can be changed concurrently with
// processing. Each channel ramps from the factor it last applied to the
// current target across one buffer.
type Gain struct {
	db     atomic.Uint64 // float64 bits
	target atomic.Uint64 // float64 bits
}

func newGain(db float64) (*Gain, error) {
	g := &Gain{}
	if err := g.SetDB(db); err != nil {
		return nil, err
	}

	return g, nil
}

// SetDB publishes a new gain in dB. Values outside [MinGainDB, MaxGainDB]
// and non-finite values are rejected.
func (g *Gain) SetDB(db float64) error {
	if !core.IsFinite(db) || db < MinGainDB || db > MaxGainDB {
		return fmt.Errorf("%w: gain %g dB outside [%g, %g]", ErrInvalidArgument, db, MinGainDB, MaxGainDB)
	}

	g.db.Store(math.Float64bits(db))
	g.target.Store(math.Float64bits(core.DBToLinear(db)))

	return nil
}

// DB returns the most recently published gain in dB.
func (g *Gain) DB() float64 { return math.Float64frombits(g.db.Load()) }

// Linear returns the most recently published linear factor.
func (g *Gain) Linear() float64 { return math.Float64frombits(g.target.Load()) }

// ramp moves x from *applied to target and records target as the new
// applied factor.
func ramp(x []float64, applied *float64, target float64) {
	vector.Ramp(x, x, *applied, target)
	*applied = target
}

package spatial

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

var (
	// ErrDatabase reports an invalid grid or HRTF data set.
	ErrDatabase = fmt.Errorf("spatial: %w", core.ErrConfiguration)
	// ErrInvalidArgument reports a rejected lookup or parameter.
	ErrInvalidArgument = fmt.Errorf("spatial: %w", core.ErrInvalidArgument)
)

// MaxIRLength is the longest supported impulse response in taps.
const MaxIRLength = 4096

// Quality selects how a direction is resolved against the grid.
type Quality int

const (
	// QualityStandard picks the nearest grid point with integer onset
	// delays.
	QualityStandard Quality = iota
	// QualityHigh interpolates bilinearly over azimuth and elevation on the
	// nearest distance shell with fractional delays.
	QualityHigh
	// QualityPremium additionally interpolates across distance shells and
	// crossfades from the previous response set on every buffer.
	QualityPremium
)

// String returns the lower-case tier name.
func (q Quality) String() string {
	switch q {
	case QualityStandard:
		return "standard"
	case QualityHigh:
		return "high"
	case QualityPremium:
		return "premium"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ParseQuality parses a tier name as produced by Quality.String.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return QualityStandard, nil
	case "high":
		return QualityHigh, nil
	case "premium":
		return QualityPremium, nil
	default:
		return 0, fmt.Errorf("%w: unknown quality %q", ErrInvalidArgument, s)
	}
}

// Grid describes the measurement positions of a Database. Azimuths run from
// 0 in steps of AzimuthStep around the full circle; Elevations and
// Distances are strictly increasing.
type Grid struct {
	SampleRate  float64   `yaml:"sample_rate"`
	AzimuthStep float64   `yaml:"azimuth_step"`
	Elevations  []float64 `yaml:"elevations"`
	Distances   []float64 `yaml:"distances"`
	Length      int       `yaml:"length"`
}

// Validate checks the grid for consistency.
func (g Grid) Validate() error {
	if !core.ValidSampleRate(g.SampleRate) {
		return fmt.Errorf("%w: sample rate %g", ErrDatabase, g.SampleRate)
	}

	if !(g.AzimuthStep > 0 && g.AzimuthStep <= 180) {
		return fmt.Errorf("%w: azimuth step %g outside (0, 180]", ErrDatabase, g.AzimuthStep)
	}

	if n := 360 / g.AzimuthStep; math.Abs(n-math.Round(n)) > 1e-9 {
		return fmt.Errorf("%w: azimuth step %g does not divide 360", ErrDatabase, g.AzimuthStep)
	}

	if len(g.Elevations) == 0 || len(g.Distances) == 0 {
		return fmt.Errorf("%w: empty elevation or distance list", ErrDatabase)
	}

	for i, e := range g.Elevations {
		if !(e >= -90 && e <= 90) || (i > 0 && e <= g.Elevations[i-1]) {
			return fmt.Errorf("%w: elevations must increase within [-90, 90]", ErrDatabase)
		}
	}

	for i, d := range g.Distances {
		if !(d > 0) || math.IsInf(d, 0) || (i > 0 && d <= g.Distances[i-1]) {
			return fmt.Errorf("%w: distances must be positive and increasing", ErrDatabase)
		}
	}

	if g.Length < 1 || g.Length > MaxIRLength {
		return fmt.Errorf("%w: length %d outside [1, %d]", ErrDatabase, g.Length, MaxIRLength)
	}

	return nil
}

// Azimuths returns the number of azimuth positions.
func (g Grid) Azimuths() int { return int(math.Round(360 / g.AzimuthStep)) }

// Size returns the number of grid points.
func (g Grid) Size() int { return g.Azimuths() * len(g.Elevations) * len(g.Distances) }

// CoefficientSet is a left/right impulse response pair with the onset
// delays removed and stored separately in samples.
type CoefficientSet struct {
	Left       []float64
	Right      []float64
	DelayLeft  float64
	DelayRight float64
}

// NewCoefficientSet returns a zeroed set of n taps per ear.
func NewCoefficientSet(n int) CoefficientSet {
	return CoefficientSet{Left: make([]float64, n), Right: make([]float64, n)}
}

// CopyFrom makes c a copy of src, reusing c's storage when large enough.
func (c *CoefficientSet) CopyFrom(src *CoefficientSet) {
	c.Left = core.EnsureLen(c.Left, len(src.Left))
	c.Right = core.EnsureLen(c.Right, len(src.Right))
	copy(c.Left, src.Left)
	copy(c.Right, src.Right)
	c.DelayLeft = src.DelayLeft
	c.DelayRight = src.DelayRight
}

func (c *CoefficientSet) reset(n int) {
	c.Left = core.EnsureLen(c.Left, n)
	c.Right = core.EnsureLen(c.Right, n)
	clear(c.Left)
	clear(c.Right)
	c.DelayLeft = 0
	c.DelayRight = 0
}

// accumulate adds w*src into c.
func (c *CoefficientSet) accumulate(src *CoefficientSet, w float64) {
	if w == 0 {
		return
	}

	vector.AddScaled(c.Left, src.Left, w)
	vector.AddScaled(c.Right, src.Right, w)
	c.DelayLeft += w * src.DelayLeft
	c.DelayRight += w * src.DelayRight
}

// Database stores one CoefficientSet per grid point. The grid is fixed at
// construction; the sets are filled by a provider and must not be modified
// while a Renderer reads them.
type Database struct {
	grid Grid
	naz  int
	sets []CoefficientSet
}

// NewDatabase allocates zeroed sets for every point of g.
func NewDatabase(g Grid) (*Database, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	g.Elevations = append([]float64(nil), g.Elevations...)
	g.Distances = append([]float64(nil), g.Distances...)

	db := &Database{grid: g, naz: g.Azimuths(), sets: make([]CoefficientSet, g.Size())}
	for i := range db.sets {
		db.sets[i] = NewCoefficientSet(g.Length)
	}

	return db, nil
}

// Grid returns the grid. The slices are shared and must not be modified.
func (db *Database) Grid() Grid { return db.grid }

// Len returns the number of stored sets.
func (db *Database) Len() int { return len(db.sets) }

// Index returns the flat index of azimuth ai, elevation ei, distance di.
func (db *Database) Index(ai, ei, di int) int {
	return (di*len(db.grid.Elevations)+ei)*db.naz + ai
}

// Set returns the stored set at flat index i for filling or inspection.
func (db *Database) Set(i int) *CoefficientSet { return &db.sets[i] }

// Point returns the grid coordinates of flat index i.
func (db *Database) Point(i int) (az, el, dist float64) {
	ai := i % db.naz
	ei := (i / db.naz) % len(db.grid.Elevations)
	di := i / (db.naz * len(db.grid.Elevations))

	return float64(ai) * db.grid.AzimuthStep, db.grid.Elevations[ei], db.grid.Distances[di]
}

// MaxDelay returns the largest onset delay stored, in samples.
func (db *Database) MaxDelay() float64 {
	m := 0.0
	for i := range db.sets {
		m = max(m, db.sets[i].DelayLeft, db.sets[i].DelayRight)
	}

	return m
}

// Lookup resolves the direction (az, el) at distance dist into dst
// according to q. Coordinates outside the grid are clamped to the nearest
// shell and elevation. dst is resized to the grid length when needed.
func (db *Database) Lookup(az, el, dist float64, q Quality, dst *CoefficientSet) error {
	if dst == nil {
		return fmt.Errorf("%w: nil destination", ErrInvalidArgument)
	}

	if !core.IsFinite(az) || !core.IsFinite(el) || !core.IsFinite(dist) {
		return fmt.Errorf("%w: non-finite direction (%g, %g, %g)", ErrInvalidArgument, az, el, dist)
	}

	dst.reset(db.grid.Length)

	a0, a1, ta := db.azimuthCell(az)
	e0, e1, te := bracket(db.grid.Elevations, el)
	d0, d1, td := bracket(db.grid.Distances, dist)

	switch q {
	case QualityStandard:
		ai := a0
		if ta >= 0.5 {
			ai = a1
		}

		dst.CopyFrom(&db.sets[db.Index(ai, nearest(e0, e1, te), nearest(d0, d1, td))])
		dst.DelayLeft = math.Round(dst.DelayLeft)
		dst.DelayRight = math.Round(dst.DelayRight)
	case QualityHigh:
		db.bilinear(dst, a0, a1, ta, e0, e1, te, nearest(d0, d1, td), 1)
	case QualityPremium:
		db.bilinear(dst, a0, a1, ta, e0, e1, te, d0, 1-td)
		db.bilinear(dst, a0, a1, ta, e0, e1, te, d1, td)
	default:
		return fmt.Errorf("%w: quality %v", ErrInvalidArgument, q)
	}

	return nil
}

func (db *Database) bilinear(dst *CoefficientSet, a0, a1 int, ta float64, e0, e1 int, te float64, di int, w float64) {
	if w == 0 {
		return
	}

	dst.accumulate(&db.sets[db.Index(a0, e0, di)], w*(1-ta)*(1-te))
	dst.accumulate(&db.sets[db.Index(a1, e0, di)], w*ta*(1-te))
	dst.accumulate(&db.sets[db.Index(a0, e1, di)], w*(1-ta)*te)
	dst.accumulate(&db.sets[db.Index(a1, e1, di)], w*ta*te)
}

// azimuthCell returns the two azimuth indices around az and the fraction
// towards the second.
func (db *Database) azimuthCell(az float64) (int, int, float64) {
	a := math.Mod(az, 360)
	if a < 0 {
		a += 360
	}

	f := a / db.grid.AzimuthStep
	i := int(f)
	t := f - float64(i)
	i %= db.naz

	return i, (i + 1) % db.naz, t
}

// bracket returns the indices around v in the increasing list xs and the
// fraction towards the second, clamping v to the list range.
func bracket(xs []float64, v float64) (int, int, float64) {
	n := len(xs)
	if n == 1 || v <= xs[0] {
		return 0, 0, 0
	}

	if v >= xs[n-1] {
		return n - 1, n - 1, 0
	}

	hi := sort.SearchFloat64s(xs, v)
	if xs[hi] == v {
		return hi, hi, 0
	}

	lo := hi - 1

	return lo, hi, (v - xs[lo]) / (xs[hi] - xs[lo])
}

func nearest(i0, i1 int, t float64) int {
	if t >= 0.5 {
		return i1
	}

	return i0
}

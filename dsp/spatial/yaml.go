package spatial

import (
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

type databaseFile struct {
	Grid         Grid              `yaml:"grid"`
	Measurements []measurementFile `yaml:"measurements"`
}

type measurementFile struct {
	Azimuth    float64   `yaml:"azimuth"`
	Elevation  float64   `yaml:"elevation"`
	Distance   float64   `yaml:"distance"`
	DelayLeft  float64   `yaml:"delay_left"`
	DelayRight float64   `yaml:"delay_right"`
	Left       []float64 `yaml:"left,flow"`
	Right      []float64 `yaml:"right,flow"`
}

// LoadDatabase reads a measured HRTF set from YAML. The document holds a
// grid header and one measurement per grid point; every point must appear
// exactly once and every response must have the grid length.
func LoadDatabase(r io.Reader) (*Database, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f databaseFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrDatabase, err)
	}

	db, err := NewDatabase(f.Grid)
	if err != nil {
		return nil, err
	}

	seen := make([]bool, db.Len())

	for k, m := range f.Measurements {
		i, ok := db.indexOf(m.Azimuth, m.Elevation, m.Distance)
		if !ok {
			return nil, fmt.Errorf("%w: measurement %d at (%g, %g, %g) is not a grid point",
				ErrDatabase, k, m.Azimuth, m.Elevation, m.Distance)
		}

		if seen[i] {
			return nil, fmt.Errorf("%w: duplicate measurement at (%g, %g, %g)",
				ErrDatabase, m.Azimuth, m.Elevation, m.Distance)
		}

		if len(m.Left) != db.grid.Length || len(m.Right) != db.grid.Length {
			return nil, fmt.Errorf("%w: measurement %d has %d/%d taps, want %d",
				ErrDatabase, k, len(m.Left), len(m.Right), db.grid.Length)
		}

		if !(m.DelayLeft >= 0) || !(m.DelayRight >= 0) || math.IsInf(m.DelayLeft, 0) || math.IsInf(m.DelayRight, 0) {
			return nil, fmt.Errorf("%w: measurement %d has invalid onset delay", ErrDatabase, k)
		}

		seen[i] = true
		set := db.Set(i)
		copy(set.Left, m.Left)
		copy(set.Right, m.Right)
		set.DelayLeft = m.DelayLeft
		set.DelayRight = m.DelayRight
	}

	for i, ok := range seen {
		if !ok {
			az, el, d := db.Point(i)
			return nil, fmt.Errorf("%w: missing measurement at (%g, %g, %g)", ErrDatabase, az, el, d)
		}
	}

	return db, nil
}

// WriteYAML writes db in the format read by LoadDatabase.
func (db *Database) WriteYAML(w io.Writer) error {
	f := databaseFile{Grid: db.grid, Measurements: make([]measurementFile, db.Len())}

	for i := range db.sets {
		az, el, d := db.Point(i)
		s := &db.sets[i]
		f.Measurements[i] = measurementFile{
			Azimuth:    az,
			Elevation:  el,
			Distance:   d,
			DelayLeft:  s.DelayLeft,
			DelayRight: s.DelayRight,
			Left:       s.Left,
			Right:      s.Right,
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("spatial: encode database: %w", err)
	}

	return enc.Close()
}

// indexOf maps exact grid coordinates to a flat index.
func (db *Database) indexOf(az, el, dist float64) (int, bool) {
	const eps = 1e-6

	a := math.Mod(az, 360)
	if a < 0 {
		a += 360
	}

	fa := a / db.grid.AzimuthStep
	ai := int(math.Round(fa))
	if math.Abs(fa-float64(ai)) > eps {
		return 0, false
	}

	ai %= db.naz

	ei := find(db.grid.Elevations, el, eps)
	di := find(db.grid.Distances, dist, eps)
	if ei < 0 || di < 0 {
		return 0, false
	}

	return db.Index(ai, ei, di), true
}

func find(xs []float64, v, eps float64) int {
	for i, x := range xs {
		if math.Abs(x-v) <= eps {
			return i
		}
	}

	return -1
}

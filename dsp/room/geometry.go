package room

import (
	"fmt"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
)

// Limits for room dimensions and surface reflection coefficients.
const (
	MinDimension  = 1.0
	MaxDimension  = 200.0
	MinReflection = 0.01
	MaxReflection = 0.99
	MaxOrder      = 8
)

var (
	// ErrGeometry reports an invalid room description.
	ErrGeometry = fmt.Errorf("room: %w", core.ErrConfiguration)
	// ErrInvalidArgument reports a rejected runtime parameter.
	ErrInvalidArgument = fmt.Errorf("room: %w", core.ErrInvalidArgument)
)

// Surface indexes the six bounding surfaces.
type Surface int

// Bounding surfaces in the order used by ReflectionPath.Hits. Left and
// right sit at x = 0 and x = Width, back and front at y = 0 and y = Length,
// floor and ceiling at z = 0 and z = Height.
const (
	SurfaceLeft Surface = iota
	SurfaceRight
	SurfaceBack
	SurfaceFront
	SurfaceFloor
	SurfaceCeiling
	surfaceCount
)

var surfaceNames = [surfaceCount]string{"left", "right", "back", "front", "floor", "ceiling"}

// String returns the surface name.
func (s Surface) String() string {
	if s < 0 || s >= surfaceCount {
		return fmt.Sprintf("Surface(%d)", int(s))
	}

	return surfaceNames[s]
}

// Surfaces holds one amplitude reflection coefficient per surface. 0 would
// absorb everything and 1 reflect everything; both extremes are rejected.
type Surfaces struct {
	Left    float64 `yaml:"left"`
	Right   float64 `yaml:"right"`
	Back    float64 `yaml:"back"`
	Front   float64 `yaml:"front"`
	Floor   float64 `yaml:"floor"`
	Ceiling float64 `yaml:"ceiling"`
}

// Uniform returns Surfaces with every coefficient set to c.
func Uniform(c float64) Surfaces {
	return Surfaces{c, c, c, c, c, c}
}

// At returns the coefficient of surface s.
func (s Surfaces) At(i Surface) float64 {
	return s.array()[i]
}

func (s Surfaces) array() [surfaceCount]float64 {
	return [surfaceCount]float64{s.Left, s.Right, s.Back, s.Front, s.Floor, s.Ceiling}
}

// Geometry is a rectangular room.
type Geometry struct {
	Width    float64  `yaml:"width"`
	Length   float64  `yaml:"length"`
	Height   float64  `yaml:"height"`
	Surfaces Surfaces `yaml:"surfaces"`
}

// Validate checks dimensions and coefficients.
func (g Geometry) Validate() error {
	for _, d := range [...]struct {
		name string
		v    float64
	}{{"width", g.Width}, {"length", g.Length}, {"height", g.Height}} {
		if !core.IsFinite(d.v) || d.v < MinDimension || d.v > MaxDimension {
			return fmt.Errorf("%w: %s %g m outside [%g, %g]", ErrGeometry, d.name, d.v, MinDimension, MaxDimension)
		}
	}

	for i, c := range g.Surfaces.array() {
		if !(c >= MinReflection && c <= MaxReflection) {
			return fmt.Errorf("%w: %s coefficient %g outside [%g, %g]",
				ErrGeometry, Surface(i), c, MinReflection, MaxReflection)
		}
	}

	return nil
}

// Contains reports whether p lies inside the room, walls included.
func (g Geometry) Contains(p spatial.Vec3) bool {
	return p.X >= 0 && p.X <= g.Width &&
		p.Y >= 0 && p.Y <= g.Length &&
		p.Z >= 0 && p.Z <= g.Height
}

// Centre returns the midpoint of the room.
func (g Geometry) Centre() spatial.Vec3 {
	return spatial.Vec3{X: g.Width / 2, Y: g.Length / 2, Z: g.Height / 2}
}

// Volume returns the room volume in cubic metres.
func (g Geometry) Volume() float64 { return g.Width * g.Length * g.Height }

// SabineRT60 estimates the reverberation time in seconds from the energy
// absorption 1-c^2 of each surface.
func (g Geometry) SabineRT60() float64 {
	s := g.Surfaces
	area := func(c float64) float64 { return 1 - c*c }

	a := g.Length*g.Height*(area(s.Left)+area(s.Right)) +
		g.Width*g.Height*(area(s.Back)+area(s.Front)) +
		g.Width*g.Length*(area(s.Floor)+area(s.Ceiling))

	return 0.161 * g.Volume() / a
}

package room

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
)

func shoebox() Geometry {
	return Geometry{Width: 10, Length: 8, Height: 3, Surfaces: Uniform(0.3)}
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Geometry)
		ok     bool
	}{
		{"default", func(*Geometry) {}, true},
		{"smallest", func(g *Geometry) { g.Width, g.Length, g.Height = 1, 1, 1 }, true},
		{"largest", func(g *Geometry) { g.Width = 200 }, true},
		{"narrow", func(g *Geometry) { g.Width = 0.5 }, false},
		{"long", func(g *Geometry) { g.Length = 201 }, false},
		{"nan height", func(g *Geometry) { g.Height = math.NaN() }, false},
		{"inf width", func(g *Geometry) { g.Width = math.Inf(1) }, false},
		{"coefficient bounds", func(g *Geometry) { g.Surfaces = Uniform(0.01) }, true},
		{"coefficient upper", func(g *Geometry) { g.Surfaces = Uniform(0.99) }, true},
		{"anechoic floor", func(g *Geometry) { g.Surfaces.Floor = 0 }, false},
		{"mirror ceiling", func(g *Geometry) { g.Surfaces.Ceiling = 1 }, false},
		{"nan wall", func(g *Geometry) { g.Surfaces.Left = math.NaN() }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := shoebox()
			tt.mutate(&g)

			err := g.Validate()
			if tt.ok {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}

				return
			}

			if !errors.Is(err, ErrGeometry) || !errors.Is(err, core.ErrConfiguration) {
				t.Fatalf("Validate err = %v, want ErrGeometry", err)
			}
		})
	}
}

func TestSurfaceOrder(t *testing.T) {
	s := Surfaces{Left: 0.1, Right: 0.2, Back: 0.3, Front: 0.4, Floor: 0.5, Ceiling: 0.6}

	for i, want := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6} {
		if got := s.At(Surface(i)); got != want {
			t.Errorf("At(%s) = %g, want %g", Surface(i), got, want)
		}
	}

	if SurfaceCeiling.String() != "ceiling" || Surface(9).String() != "Surface(9)" {
		t.Errorf("String: %q %q", SurfaceCeiling, Surface(9))
	}
}

func TestContainsAndCentre(t *testing.T) {
	g := shoebox()

	if c := g.Centre(); c != (spatial.Vec3{X: 5, Y: 4, Z: 1.5}) || !g.Contains(c) {
		t.Errorf("Centre = %v", c)
	}

	if !g.Contains(spatial.Vec3{X: 10, Y: 8, Z: 3}) {
		t.Error("far corner should be inside")
	}

	if g.Contains(spatial.Vec3{X: 5, Y: -0.1, Z: 1}) {
		t.Error("point behind the back wall reported inside")
	}
}

func TestSabineRT60(t *testing.T) {
	g := shoebox()

	absorption := 1 - 0.3*0.3
	area := 2 * (10*8 + 10*3 + 8*3.0)
	want := 0.161 * 240 / (area * absorption)

	if got := g.SabineRT60(); math.Abs(got-want) > 1e-12 {
		t.Errorf("SabineRT60 = %g, want %g", got, want)
	}

	g.Surfaces = Uniform(0.9)
	if g.SabineRT60() <= want {
		t.Error("harder walls should reverberate longer")
	}
}

package room

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
)

func TestImageSourcesShoebox(t *testing.T) {
	g := shoebox()
	src := spatial.Vec3{X: 5, Y: 6, Z: 1.2}
	lst := g.Centre()

	paths, err := ImageSources(g, src, lst, 3)
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) == 0 {
		t.Fatal("no reflections")
	}

	for i, p := range paths {
		if p.Order < 1 || p.Order > 3 {
			t.Errorf("path %d order %d", i, p.Order)
		}

		if !(p.Delay > 0) {
			t.Errorf("path %d delay %g", i, p.Delay)
		}

		if !(p.Amplitude > 0 && p.Amplitude <= 1) {
			t.Errorf("path %d amplitude %g", i, p.Amplitude)
		}

		hits := 0
		for _, n := range p.Hits {
			hits += n
		}

		if hits != p.Order {
			t.Errorf("path %d hits %v sum to %d, order %d", i, p.Hits, hits, p.Order)
		}

		if math.Abs(p.Delay-p.Distance/SpeedOfSound) > 1e-15 {
			t.Errorf("path %d delay %g for %g m", i, p.Delay, p.Distance)
		}
	}

	if !slices.IsSortedFunc(paths, func(a, b ReflectionPath) int { return cmp.Compare(a.Delay, b.Delay) }) {
		t.Error("paths not sorted by delay")
	}
}

func TestImageSourceCount(t *testing.T) {
	g := shoebox()

	// One image per axis at zero bounces, two at every other count.
	for order, want := range map[int]int{1: 6, 2: 24, 3: 62} {
		paths, err := ImageSources(g, spatial.Vec3{X: 2, Y: 3, Z: 1}, g.Centre(), order)
		if err != nil {
			t.Fatal(err)
		}

		if len(paths) != want {
			t.Errorf("order %d: %d paths, want %d", order, len(paths), want)
		}
	}
}

func TestFirstOrderImages(t *testing.T) {
	g := Geometry{
		Width: 10, Length: 8, Height: 3,
		Surfaces: Surfaces{Left: 0.1, Right: 0.2, Back: 0.3, Front: 0.4, Floor: 0.5, Ceiling: 0.6},
	}
	src := spatial.Vec3{X: 2, Y: 3, Z: 1}
	lst := spatial.Vec3{X: 6, Y: 5, Z: 2}

	want := map[Surface]spatial.Vec3{
		SurfaceLeft:    {X: -2, Y: 3, Z: 1},
		SurfaceRight:   {X: 18, Y: 3, Z: 1},
		SurfaceBack:    {X: 2, Y: -3, Z: 1},
		SurfaceFront:   {X: 2, Y: 13, Z: 1},
		SurfaceFloor:   {X: 2, Y: 3, Z: -1},
		SurfaceCeiling: {X: 2, Y: 3, Z: 5},
	}

	paths, err := ImageSources(g, src, lst, 1)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range paths {
		var s Surface
		for i, n := range p.Hits {
			if n == 1 {
				s = Surface(i)
			}
		}

		if p.Image.Sub(want[s]).Norm() > 1e-12 {
			t.Errorf("%s image at %v, want %v", s, p.Image, want[s])
		}

		d := want[s].Sub(lst).Norm()
		if amp := g.Surfaces.At(s) / (d * d); math.Abs(p.Amplitude-amp) > 1e-15 {
			t.Errorf("%s amplitude %g, want %g", s, p.Amplitude, amp)
		}
	}
}

func TestSecondOrderAmplitude(t *testing.T) {
	g := Geometry{
		Width: 10, Length: 8, Height: 3,
		Surfaces: Surfaces{Left: 0.1, Right: 0.2, Back: 0.3, Front: 0.4, Floor: 0.5, Ceiling: 0.6},
	}

	paths, err := ImageSources(g, spatial.Vec3{X: 2, Y: 3, Z: 1}, g.Centre(), 2)
	if err != nil {
		t.Fatal(err)
	}

	found := 0

	for _, p := range paths {
		if p.Hits[SurfaceLeft] == 1 && p.Hits[SurfaceRight] == 1 {
			found++

			if math.Abs(p.Image.X-22) > 1e-12 && math.Abs(p.Image.X+18) > 1e-12 {
				t.Errorf("left-right image at x = %g", p.Image.X)
			}

			if want := 0.1 * 0.2 / (p.Distance * p.Distance); math.Abs(p.Amplitude-want) > 1e-15 {
				t.Errorf("amplitude %g, want %g", p.Amplitude, want)
			}
		}
	}

	if found != 2 {
		t.Errorf("%d left-right paths, want 2", found)
	}
}

func TestImageSourcesNearWallClampsSpreading(t *testing.T) {
	g := shoebox()

	paths, err := ImageSources(g, spatial.Vec3{X: 0.2, Y: 4, Z: 1.5}, spatial.Vec3{X: 0.1, Y: 4, Z: 1.5}, 1)
	if err != nil {
		t.Fatal(err)
	}

	// The left-wall image is 0.3 m away; its loss is clamped at 1 m.
	if p := paths[0]; p.Hits[SurfaceLeft] != 1 || p.Amplitude != 0.3 {
		t.Errorf("nearest path %+v", p)
	}
}

func TestImageSourcesSkipsImagesAtListener(t *testing.T) {
	g := shoebox()
	p := spatial.Vec3{X: 0, Y: 3, Z: 1}

	paths, err := ImageSources(g, p, p, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) == 0 {
		t.Fatal("no reflections")
	}

	right := false

	for i, path := range paths {
		if !(path.Delay > 0) || !(path.Distance > 0) {
			t.Fatalf("path %d %+v has no length", i, path)
		}

		if path.Order == 1 && path.Hits[SurfaceLeft] == 1 {
			t.Errorf("left-wall image of a source on that wall kept: %+v", path)
		}

		if path.Order == 1 && path.Hits[SurfaceRight] == 1 {
			right = true
		}
	}

	if !right {
		t.Error("right-wall image missing")
	}
}

func TestImageSourcesRejects(t *testing.T) {
	g := shoebox()
	in := g.Centre()

	tests := []struct {
		name     string
		g        Geometry
		src, lst spatial.Vec3
		order    int
		want     error
	}{
		{"order zero", g, in, in, 0, core.ErrInvalidArgument},
		{"order nine", g, in, in, 9, core.ErrInvalidArgument},
		{"source outside", g, spatial.Vec3{X: 11, Y: 1, Z: 1}, in, 2, core.ErrInvalidArgument},
		{"listener below", g, in, spatial.Vec3{X: 1, Y: 1, Z: -1}, 2, core.ErrInvalidArgument},
		{"bad geometry", Geometry{Width: 10, Length: 8, Height: 3}, in, in, 2, core.ErrConfiguration},
	}

	for _, tt := range tests {
		if _, err := ImageSources(tt.g, tt.src, tt.lst, tt.order); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestImageSourcesMaxOrder(t *testing.T) {
	g := shoebox()

	paths, err := ImageSources(g, spatial.Vec3{X: 3, Y: 2, Z: 1}, g.Centre(), MaxOrder)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range paths {
		if p.Order > MaxOrder || !(p.Amplitude > 0) || math.IsInf(p.Delay, 0) {
			t.Fatalf("bad path %+v", p)
		}
	}
}

func TestDirectPath(t *testing.T) {
	p := DirectPath(spatial.Vec3{X: 1, Y: 1, Z: 1}, spatial.Vec3{X: 1, Y: 5, Z: 1})

	if p.Distance != 4 || p.Amplitude != 1.0/16 || p.Order != 0 {
		t.Errorf("DirectPath = %+v", p)
	}
}

func BenchmarkImageSources(b *testing.B) {
	g := shoebox()

	for b.Loop() {
		if _, err := ImageSources(g, spatial.Vec3{X: 3, Y: 2, Z: 1}, g.Centre(), 3); err != nil {
			b.Fatal(err)
		}
	}
}

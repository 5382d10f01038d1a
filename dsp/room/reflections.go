package room

import (
	"cmp"
	"math"
	"slices"

	"github.com/cwbudde/algo-spatial/dsp/spatial"
)

// SpeedOfSound in metres per second.
const SpeedOfSound = 343.0

// minImageDistance is the shortest image path kept, in metres.
const minImageDistance = 1e-9

// ReflectionPath is one image source seen from the listener.
type ReflectionPath struct {
	Image     spatial.Vec3 // image source position in room coordinates
	Distance  float64      // metres from image to listener
	Delay     float64      // seconds
	Amplitude float64
	Order     int
	// Hits counts the bounces off each surface, indexed by Surface.
	Hits [surfaceCount]int
}

// ImageSources enumerates every image of src up to maxOrder bounces using
// the Allen-Berkley construction and returns the paths sorted by delay.
// Each path is attenuated by the product of the coefficients it bounced off
// and by the inverse square of its length, clamped below 1 m. The direct
// path and images that coincide with the listener are not included.
func ImageSources(g Geometry, src, listener spatial.Vec3, maxOrder int) ([]ReflectionPath, error) {
	if err := validate(g, src, listener, maxOrder); err != nil {
		return nil, err
	}

	xs := axisImages(src.X, g.Width, maxOrder)
	ys := axisImages(src.Y, g.Length, maxOrder)
	zs := axisImages(src.Z, g.Height, maxOrder)
	coeff := g.Surfaces.array()

	var paths []ReflectionPath

	for _, ix := range xs {
		for _, iy := range ys {
			order := ix.order() + iy.order()
			if order > maxOrder {
				continue
			}

			for _, iz := range zs {
				o := order + iz.order()
				if o == 0 || o > maxOrder {
					continue
				}

				img := spatial.Vec3{X: ix.pos, Y: iy.pos, Z: iz.pos}

				// A source on a wall mirrors onto itself; with the listener
				// there too the image has no length.
				d := img.Sub(listener).Norm()
				if d < minImageDistance {
					continue
				}

				p := ReflectionPath{
					Image: img,
					Order: o,
					Hits: [surfaceCount]int{
						ix.lo, ix.hi, iy.lo, iy.hi, iz.lo, iz.hi,
					},
				}

				gain := 1.0
				for s, n := range p.Hits {
					for range n {
						gain *= coeff[s]
					}
				}

				p.Distance = d
				p.Delay = p.Distance / SpeedOfSound
				p.Amplitude = gain / spreading(p.Distance)
				paths = append(paths, p)
			}
		}
	}

	slices.SortStableFunc(paths, func(a, b ReflectionPath) int {
		if c := cmp.Compare(a.Delay, b.Delay); c != 0 {
			return c
		}

		return a.Order - b.Order
	})

	return paths, nil
}

// DirectPath returns the unreflected path from src to listener.
func DirectPath(src, listener spatial.Vec3) ReflectionPath {
	d := src.Sub(listener).Norm()

	return ReflectionPath{
		Image:     src,
		Distance:  d,
		Delay:     d / SpeedOfSound,
		Amplitude: 1 / spreading(d),
	}
}

// spreading is the inverse-square loss with the distance clamped at 1 m.
func spreading(d float64) float64 {
	d = math.Max(d, 1)

	return d * d
}

// axisImage is one image coordinate along a single axis and the number of
// bounces it took off the low (coordinate 0) and high walls.
type axisImage struct {
	pos    float64
	lo, hi int
}

func (a axisImage) order() int { return a.lo + a.hi }

// axisImages lists the coordinates (1-2p)*s + 2*m*size for p in {0, 1}
// whose bounce count stays within maxOrder. The mirrored image (p = 1)
// meets the low wall |m-1| times; both images meet the high wall |m| times.
func axisImages(s, size float64, maxOrder int) []axisImage {
	out := make([]axisImage, 0, 4*maxOrder+2)

	for m := -maxOrder; m <= maxOrder; m++ {
		for p := range 2 {
			img := axisImage{
				pos: float64(1-2*p)*s + 2*float64(m)*size,
				lo:  absInt(m - p),
				hi:  absInt(m),
			}

			if img.order() <= maxOrder {
				out = append(out, img)
			}
		}
	}

	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

package spatial

import "math"

// Vec3 is a position or direction in metres.
type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Add returns v+w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v-w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the scalar product.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Cross returns the vector product.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X,
	}
}

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 { return mathSqrt(v.Dot(v)) }

// Unit returns v scaled to length 1, or the zero vector.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}

	return v.Scale(1 / n)
}

// IsFinite reports whether every component is finite.
func (v Vec3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}

	return true
}

// Spherical converts v to azimuth and elevation in degrees and distance in
// metres. The zero vector maps to (0, 0, 0).
func (v Vec3) Spherical() (az, el, dist float64) {
	dist = v.Norm()
	if dist == 0 {
		return 0, 0, 0
	}

	az = math.Atan2(v.X, v.Y) * 180 / math.Pi
	el = math.Atan2(v.Z, mathSqrt(v.X*v.X+v.Y*v.Y)) * 180 / math.Pi

	return az, el, dist
}

// FromSpherical is the inverse of Vec3.Spherical.
func FromSpherical(az, el, dist float64) Vec3 {
	a := az * math.Pi / 180
	e := el * math.Pi / 180
	ce := math.Cos(e)

	return Vec3{
		X: dist * ce * math.Sin(a),
		Y: dist * ce * math.Cos(a),
		Z: dist * math.Sin(e),
	}
}

// wrapAzimuth maps az into [-180, 180).
func wrapAzimuth(az float64) float64 {
	az = math.Mod(az+180, 360)
	if az < 0 {
		az += 360
	}

	return az - 180
}

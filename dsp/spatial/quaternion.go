package spatial

import "math"

// Quaternion is a rotation W + Xi + Yj + Zk. The zero value is not a valid
// rotation; use IdentityQuaternion.
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion is the rotation that changes nothing.
var IdentityQuaternion = Quaternion{W: 1}

// FromAxisAngle returns the rotation by angle radians about axis, counter
// clockwise when looking down the axis towards the origin.
func FromAxisAngle(axis Vec3, angle float64) Quaternion {
	u := axis.Unit()
	if u == (Vec3{}) {
		return IdentityQuaternion
	}

	s, c := math.Sincos(angle / 2)

	return Quaternion{W: c, X: u.X * s, Y: u.Y * s, Z: u.Z * s}
}

// FromYawPitchRoll returns a head orientation from angles in radians. Yaw
// > 0 turns the head to the right, pitch > 0 tilts the nose up and roll > 0
// lowers the right ear. Yaw is applied first, then pitch, then roll, each
// about the already rotated head axes.
func FromYawPitchRoll(yaw, pitch, roll float64) Quaternion {
	qz := FromAxisAngle(Vec3{Z: 1}, -yaw)
	qx := FromAxisAngle(Vec3{X: 1}, pitch)
	qy := FromAxisAngle(Vec3{Y: 1}, roll)

	return qz.Mul(qx).Mul(qy)
}

// Mul returns the Hamilton product q*r, the rotation r followed by q.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return mathSqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns q scaled to unit length. A zero or non-finite
// quaternion normalizes to the identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return IdentityQuaternion
	}

	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	// v' = v + 2w(u x v) + 2u x (u x v), u = (X, Y, Z)
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)

	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

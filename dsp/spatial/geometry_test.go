package spatial

import (
	"math"
	"sync"
	"testing"
	"time"
)

const deg = math.Pi / 180

func vecNear(a, b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func TestSphericalRoundTrip(t *testing.T) {
	tests := []struct {
		az, el, d float64
	}{
		{0, 0, 1},
		{90, 0, 2},
		{-90, 0, 2},
		{45, 30, 3.5},
		{-135, -60, 0.7},
		{179, 10, 1},
	}

	for _, tt := range tests {
		az, el, d := FromSpherical(tt.az, tt.el, tt.d).Spherical()
		if math.Abs(az-tt.az) > 1e-9 || math.Abs(el-tt.el) > 1e-9 || math.Abs(d-tt.d) > 1e-12 {
			t.Errorf("(%g, %g, %g) -> (%g, %g, %g)", tt.az, tt.el, tt.d, az, el, d)
		}
	}
}

func TestSphericalAxes(t *testing.T) {
	if az, _, _ := (Vec3{X: 1}).Spherical(); math.Abs(az-90) > 1e-12 {
		t.Fatalf("right azimuth = %g", az)
	}

	if _, el, _ := (Vec3{Z: 1}).Spherical(); math.Abs(el-90) > 1e-12 {
		t.Fatalf("up elevation = %g", el)
	}

	if az, el, d := (Vec3{}).Spherical(); az != 0 || el != 0 || d != 0 {
		t.Fatalf("zero vector = (%g, %g, %g)", az, el, d)
	}
}

func TestWrapAzimuth(t *testing.T) {
	for in, want := range map[float64]float64{0: 0, 190: -170, -190: 170, 540: -180, 359: -1} {
		if got := wrapAzimuth(in); math.Abs(got-want) > 1e-12 {
			t.Errorf("wrapAzimuth(%g) = %g, want %g", in, got, want)
		}
	}
}

func TestQuaternionAxisAngle(t *testing.T) {
	q := FromAxisAngle(Vec3{Z: 1}, 90*deg)
	if got := q.Rotate(Vec3{X: 1}); !vecNear(got, Vec3{Y: 1}, 1e-12) {
		t.Fatalf("rotate x about z: %+v", got)
	}

	if got := q.Conjugate().Rotate(Vec3{Y: 1}); !vecNear(got, Vec3{X: 1}, 1e-12) {
		t.Fatalf("inverse rotation: %+v", got)
	}

	if got := FromAxisAngle(Vec3{}, 1); got != IdentityQuaternion {
		t.Fatalf("zero axis: %+v", got)
	}
}

func TestQuaternionComposition(t *testing.T) {
	a := FromAxisAngle(Vec3{X: 1}, 30*deg)
	b := FromAxisAngle(Vec3{Y: 1}, -50*deg)
	v := Vec3{X: 0.3, Y: -1.2, Z: 2}

	got := a.Mul(b).Rotate(v)
	want := a.Rotate(b.Rotate(v))

	if !vecNear(got, want, 1e-12) {
		t.Fatalf("(a*b)v = %+v, a(bv) = %+v", got, want)
	}

	id := a.Mul(a.Conjugate())
	if math.Abs(id.W-1) > 1e-12 || math.Abs(id.X) > 1e-12 {
		t.Fatalf("a*conj(a) = %+v", id)
	}
}

func TestQuaternionNormalize(t *testing.T) {
	q := Quaternion{W: 2, X: 0, Y: 0, Z: 2}.Normalize()
	if math.Abs(q.Norm()-1) > 1e-12 {
		t.Fatalf("norm = %g", q.Norm())
	}

	for _, bad := range []Quaternion{{}, {W: math.NaN()}, {X: math.Inf(1)}} {
		if got := bad.Normalize(); got != IdentityQuaternion {
			t.Fatalf("Normalize(%+v) = %+v", bad, got)
		}
	}
}

func TestYawPitchRollConventions(t *testing.T) {
	front := Vec3{Y: 2}

	// Head turned right: a world-front source is on the head's left.
	yaw := FromYawPitchRoll(90*deg, 0, 0)
	if az, _, _ := yaw.Conjugate().Rotate(front).Spherical(); math.Abs(az+90) > 1e-9 {
		t.Fatalf("yaw right: local az = %g, want -90", az)
	}

	// Nose up: a world-front source appears below.
	pitch := FromYawPitchRoll(0, 30*deg, 0)
	if _, el, _ := pitch.Conjugate().Rotate(front).Spherical(); math.Abs(el+30) > 1e-9 {
		t.Fatalf("pitch up: local el = %g, want -30", el)
	}

	// Right ear down: the left ear now points at a source straight up.
	roll := FromYawPitchRoll(0, 0, 90*deg)
	if az, _, _ := roll.Conjugate().Rotate(Vec3{Z: 1}).Spherical(); math.Abs(az+90) > 1e-9 {
		t.Fatalf("roll right: local az = %g, want -90", az)
	}
}

func TestHeadTracker(t *testing.T) {
	var nilTracker *HeadTracker
	if got := nilTracker.Latest().Rotation; got != IdentityQuaternion {
		t.Fatalf("nil tracker: %+v", got)
	}

	tr := NewHeadTracker()
	if got := tr.Latest().Rotation; got != IdentityQuaternion {
		t.Fatalf("initial: %+v", got)
	}

	now := time.Unix(100, 0)
	tr.Publish(Orientation{Rotation: Quaternion{W: 3}, Timestamp: now})

	got := tr.Latest()
	if got.Rotation != IdentityQuaternion || !got.Timestamp.Equal(now) {
		t.Fatalf("latest = %+v", got)
	}
}

func TestHeadTrackerConcurrent(t *testing.T) {
	tr := NewHeadTracker()

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 500 {
				tr.Publish(Orientation{Rotation: FromYawPitchRoll(float64(w*i)*deg, 0, 0)})
			}
		}()
	}

	for range 2000 {
		if n := tr.Latest().Rotation.Norm(); math.Abs(n-1) > 1e-9 {
			t.Fatalf("torn orientation, norm %g", n)
		}
	}

	wg.Wait()
}

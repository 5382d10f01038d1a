package spatial

import (
	"sync/atomic"
	"time"
)

// Orientation is one head-tracking sample. Rotation maps head-local
// directions to world directions.
type Orientation struct {
	Rotation  Quaternion
	Timestamp time.Time
}

// HeadTracker holds the most recent head orientation. Publishers and
// readers never block each other; the last write wins.
type HeadTracker struct {
	latest atomic.Pointer[Orientation]
}

// NewHeadTracker returns a tracker facing straight ahead.
func NewHeadTracker() *HeadTracker {
	t := &HeadTracker{}
	t.latest.Store(&Orientation{Rotation: IdentityQuaternion})

	return t
}

// Publish stores o after normalizing its rotation.
func (t *HeadTracker) Publish(o Orientation) {
	o.Rotation = o.Rotation.Normalize()
	t.latest.Store(&o)
}

// Latest returns the most recent orientation. A nil tracker reports the
// identity orientation.
func (t *HeadTracker) Latest() Orientation {
	if t == nil {
		return Orientation{Rotation: IdentityQuaternion}
	}

	if o := t.latest.Load(); o != nil {
		return *o
	}

	return Orientation{Rotation: IdentityQuaternion}
}

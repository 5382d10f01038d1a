package pipeline

import "time"

// latencyWindow is the number of buffers in the rolling latency average.
const latencyWindow = 128

// Metrics is a snapshot of the orchestrator's counters.
type Metrics struct {
	AverageLatencyMs float64
	PeakLatencyMs    float64
	// THDPlusNoise is the last measured THD+N in percent.
	THDPlusNoise float64
	// HarmonicDistortion and ResidualNoise split the last MeasureTHDN
	// result into its harmonic and non-harmonic parts, in percent.
	HarmonicDistortion    float64
	ResidualNoise         float64
	BufferPoolUtilization float64
	ActiveOperationCount  int

	BuffersProcessed uint64
	Overruns         uint64
	FatalOverruns    uint64
	// Bypassed is true while either ManualBypass or AutoBypass is set.
	Bypassed             bool
	ManualBypass         bool
	AutoBypass           bool
	BypassTransitions    uint64
	StageFailures        uint64
	PoolExhaustions      uint64
	CorrectionRejections uint64
	UpdatedAt            time.Time
}

// recorder accumulates Metrics. It is owned by the goroutine holding the
// orchestrator lock.
type recorder struct {
	m      Metrics
	window [latencyWindow]float64
	next   int
	filled int
	sum    float64
}

func (r *recorder) latency(ms float64) {
	if r.filled == latencyWindow {
		r.sum -= r.window[r.next]
	} else {
		r.filled++
	}

	r.window[r.next] = ms
	r.sum += ms
	r.next = (r.next + 1) % latencyWindow

	r.m.AverageLatencyMs = r.sum / float64(r.filled)
	r.m.PeakLatencyMs = max(r.m.PeakLatencyMs, ms)
	r.m.BuffersProcessed++
}

// reset clears every counter but keeps the bypass state and the last
// distortion measurement.
func (r *recorder) reset() {
	m := r.m
	*r = recorder{}
	r.m.Bypassed, r.m.ManualBypass, r.m.AutoBypass = m.Bypassed, m.ManualBypass, m.AutoBypass
	r.m.THDPlusNoise, r.m.HarmonicDistortion, r.m.ResidualNoise = m.THDPlusNoise, m.HarmonicDistortion, m.ResidualNoise
}

// snapshot copies the counters into dst.
func (r *recorder) snapshot(dst *Metrics, at time.Time) {
	*dst = r.m
	dst.UpdatedAt = at
}

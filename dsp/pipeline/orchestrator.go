package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-spatial/dsp/buffer"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
	"github.com/cwbudde/algo-spatial/dsp/room"
	"github.com/cwbudde/algo-spatial/dsp/signal"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
	"github.com/cwbudde/algo-spatial/dsp/stage"
	"github.com/cwbudde/algo-spatial/dsp/vector"
	"github.com/cwbudde/algo-spatial/measure/thd"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidInput reports a buffer the orchestrator cannot process.
	ErrInvalidInput = fmt.Errorf("pipeline: %w", core.ErrInvalidInput)
	// ErrInvalidArgument reports a rejected runtime parameter.
	ErrInvalidArgument = fmt.Errorf("pipeline: %w", core.ErrInvalidArgument)
)

type options struct {
	stage   *stage.Stage
	model   *room.Model
	db      *spatial.Database
	tracker *spatial.HeadTracker
	clock   Clock
	log     logrus.FieldLogger
}

// Option configures an Orchestrator.
type Option func(*options)

// WithStage injects the DSP stage. It must match the configured sample rate
// and have at least ChannelCount channels.
func WithStage(s *stage.Stage) Option { return func(o *options) { o.stage = s } }

// WithRoomModel injects the room model used for correction.
func WithRoomModel(m *room.Model) Option { return func(o *options) { o.model = m } }

// WithHRTFDatabase injects the response database. Without it a spherical
// head model database is generated for the configured sample rate.
func WithHRTFDatabase(db *spatial.Database) Option { return func(o *options) { o.db = db } }

// WithHeadTracker shares a head tracker with the renderers.
func WithHeadTracker(t *spatial.HeadTracker) Option { return func(o *options) { o.tracker = t } }

// WithClock replaces the time source used for latency accounting.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// Orchestrator sequences the stages for one stream. Process calls are
// serialized; parameter setters and Metrics may be called from any
// goroutine.
type Orchestrator struct {
	id    string
	cfg   Config
	clock Clock
	log   logrus.FieldLogger

	pool       *buffer.Pool
	stage      *stage.Stage
	model      *room.Model
	correction *room.CorrectionFilter
	renderers  []*spatial.Renderer
	tracker    *spatial.HeadTracker
	listener   spatial.Vec3

	posMu   sync.Mutex
	sources []spatial.Vec3

	mu           sync.Mutex // serializes processing and guards the fields below
	staging      *buffer.Buffer
	work         *buffer.Buffer
	left, right  [][]float64
	rec          recorder
	bypassed     bool // manualBypass || autoBypass
	manualBypass bool
	autoBypass   bool
	fatalRun     int
	calmRun      int
	failWarned   bool // a stage failure was logged at warn since the last bypass change

	bypassFlag atomic.Bool
	active     atomic.Int32
	freed      chan struct{} // signalled when Release returns a buffer

	snapMu   sync.RWMutex
	snapshot Metrics
}

// New validates cfg and builds every stage not injected through opts.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	op := options{clock: SystemClock{}, log: logrus.StandardLogger()}
	for _, fn := range opts {
		fn(&op)
	}

	if op.tracker == nil {
		op.tracker = spatial.NewHeadTracker()
	}

	o := &Orchestrator{
		id:       uuid.NewString(),
		cfg:      cfg,
		clock:    op.clock,
		tracker:  op.tracker,
		listener: cfg.ListenerPosition(),
		sources:  cfg.SourcePositions(),
		freed:    make(chan struct{}, 1),
	}
	o.log = op.log.WithFields(logrus.Fields{"component": "pipeline", "pipeline": o.id})

	if err := o.build(op); err != nil {
		return nil, err
	}

	o.publish()

	o.log.WithFields(logrus.Fields{
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.ChannelCount,
		"buffer_size": cfg.BufferSize,
		"quality":     cfg.Quality(),
	}).Info("pipeline created")

	return o, nil
}

func (o *Orchestrator) build(op options) error {
	cfg := o.cfg
	sr := cfg.SampleRate

	var err error

	o.stage = op.stage
	if o.stage == nil {
		o.stage, err = stage.New(stage.Config{SampleRate: sr, Channels: cfg.ChannelCount, EQBands: cfg.EQBandCount})
		if err != nil {
			return err
		}
	} else if sc := o.stage.Config(); sc.SampleRate != sr || sc.Channels < cfg.ChannelCount {
		return fmt.Errorf("%w: stage is %g Hz x %d channels", ErrConfiguration, sc.SampleRate, sc.Channels)
	}

	o.pool, err = buffer.NewPool(buffer.PoolConfig{
		Capacity:  cfg.PoolSize,
		Channels:  2,
		Frames:    cfg.BufferSize,
		Alignment: cfg.Alignment,
		Layout:    buffer.LayoutPlanar,
	})
	if err != nil {
		return err
	}

	o.staging, err = buffer.New(cfg.ChannelCount, cfg.BufferSize, buffer.LayoutPlanar, cfg.Alignment)
	if err != nil {
		return err
	}

	o.work, err = buffer.New(cfg.ChannelCount, cfg.BufferSize, buffer.LayoutPlanar, cfg.Alignment)
	if err != nil {
		return err
	}

	db := op.db
	if db == nil {
		db, err = spatial.NewSphericalHeadModel(sr).Database(spatial.DefaultGrid(sr))
		if err != nil {
			return err
		}
	} else if db.Grid().SampleRate != sr {
		return fmt.Errorf("%w: HRTF database at %g Hz", ErrConfiguration, db.Grid().SampleRate)
	}

	geometry := cfg.Room.Geometry()

	o.model = op.model
	if o.model == nil {
		o.model, err = room.NewModel(geometry, roomSource(geometry, o.listener, o.sources), o.listener,
			room.WithOrder(cfg.Room.ReflectionOrder), room.WithLogger(o.log))
		if err != nil {
			return err
		}
	}

	o.correction, err = room.NewCorrectionFilter(sr, cfg.ChannelCount, design.BandCenters(cfg.EQBandCount),
		room.WithMaxBoostDB(cfg.Room.MaxBoostDB), room.WithTHDNThreshold(cfg.THDNThresholdPercent))
	if err != nil {
		return err
	}

	o.renderers = make([]*spatial.Renderer, cfg.ChannelCount)
	o.left = make([][]float64, cfg.ChannelCount)
	o.right = make([][]float64, cfg.ChannelCount)

	for ch := range o.renderers {
		o.renderers[ch], err = spatial.NewRenderer(db,
			spatial.WithMaxBlock(cfg.BufferSize),
			spatial.WithQuality(cfg.Quality()),
			spatial.WithHeadTracker(o.tracker),
			spatial.WithListenerPosition(o.listener),
			spatial.WithSourcePosition(o.listener.Add(o.sources[ch])),
			spatial.WithDistanceAttenuation(cfg.DistanceAttenuation),
			spatial.WithAirAbsorption(cfg.AirAbsorption),
		)
		if err != nil {
			return err
		}

		o.left[ch] = vector.MakeAligned(cfg.BufferSize, cfg.Alignment)
		o.right[ch] = vector.MakeAligned(cfg.BufferSize, cfg.Alignment)
	}

	return nil
}

// ID returns the orchestrator's unique identifier.
func (o *Orchestrator) ID() string { return o.id }

// Config returns the validated configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// HeadTracker returns the tracker the renderers read orientation from.
func (o *Orchestrator) HeadTracker() *spatial.HeadTracker { return o.tracker }

// RoomModel returns the room model.
func (o *Orchestrator) RoomModel() *room.Model { return o.model }

// Correction returns the room correction filter.
func (o *Orchestrator) Correction() *room.CorrectionFilter { return o.correction }

// Process runs one buffer through the chain and returns a stereo planar
// buffer borrowed from the pool. The caller hands it back with Release.
// in may be planar or interleaved and must carry ChannelCount channels and
// at most BufferSize frames.
func (o *Orchestrator) Process(in *buffer.Buffer) (*buffer.Buffer, error) {
	o.active.Add(1)
	defer o.active.Add(-1)

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.timed(in)
}

// ProcessInterleaved processes interleaved ChannelCount-channel frames from
// src into interleaved stereo frames in dst.
func (o *Orchestrator) ProcessInterleaved(dst, src []float64) error {
	ch := o.cfg.ChannelCount
	if len(src) == 0 || len(src)%ch != 0 || len(src)/ch > o.cfg.BufferSize {
		return fmt.Errorf("%w: %d samples for %d channels", ErrInvalidInput, len(src), ch)
	}

	frames := len(src) / ch
	if len(dst) != 2*frames {
		return fmt.Errorf("%w: dst holds %d samples, want %d", ErrInvalidInput, len(dst), 2*frames)
	}

	o.active.Add(1)
	defer o.active.Add(-1)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.staging.Reshape(ch, frames); err != nil {
		return err
	}

	if err := o.staging.Deinterleave(src); err != nil {
		return err
	}

	out, err := o.timed(o.staging)
	if err != nil {
		return err
	}
	defer o.Release(out)

	return out.Interleave(dst)
}

// Release returns a buffer obtained from Process to the pool and wakes a
// Run loop waiting for one.
func (o *Orchestrator) Release(b *buffer.Buffer) {
	o.pool.Release(b)

	select {
	case o.freed <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) timed(in *buffer.Buffer) (*buffer.Buffer, error) {
	start := o.clock.Now()

	out, err := o.process(in)
	if err != nil {
		o.publish()
		return nil, err
	}

	o.account(o.clock.Since(start))

	return out, nil
}

func (o *Orchestrator) process(in *buffer.Buffer) (*buffer.Buffer, error) {
	if in == nil || in.Channels() != o.cfg.ChannelCount || in.Frames() > o.cfg.BufferSize {
		return nil, fmt.Errorf("%w: want %d channels and at most %d frames", ErrInvalidInput,
			o.cfg.ChannelCount, o.cfg.BufferSize)
	}

	// The output is the only pool buffer. Nothing has touched the stage
	// state yet, so the caller can retry the same input after a Release.
	out, err := o.acquire()
	if err != nil {
		return nil, err
	}

	work := o.work
	frames := in.Frames()
	if err := errors.Join(work.Reshape(in.Channels(), frames), out.Reshape(2, frames), work.CopyFrom(in)); err != nil {
		o.Release(out)
		return nil, err
	}

	if err := o.stage.Process(work); err != nil {
		o.Release(out)
		return nil, err
	}

	switch {
	case o.bypassed:
		passThrough(out, work)
	default:
		if err := o.spatialize(out, work); err != nil {
			o.rec.m.StageFailures++
			o.stageFailed(err)
			out.Zero()
			passThrough(out, work)
		}
	}

	for ch := range 2 {
		x := out.Channel(ch)
		vector.Clip(x, x, -1, 1)
	}

	return out, nil
}

func (o *Orchestrator) acquire() (*buffer.Buffer, error) {
	b, err := o.pool.Acquire()
	if err != nil {
		o.rec.m.PoolExhaustions++
		o.log.WithField("capacity", o.cfg.PoolSize).Warn("buffer pool exhausted")

		return nil, fmt.Errorf("pipeline: output buffer: %w", err)
	}

	return b, nil
}

// stageFailed logs the first failure of a bypass period at warn level and
// the rest at debug.
func (o *Orchestrator) stageFailed(err error) {
	entry := o.log.WithError(err).WithField("failures", o.rec.m.StageFailures)
	if o.failWarned {
		entry.Debug("spatial stage failed, passing buffer through")
		return
	}

	o.failWarned = true
	entry.Warn("spatial stage failed, passing buffer through")
}

// spatialize applies room correction and renders every channel, summing
// the binaural pairs into out.
func (o *Orchestrator) spatialize(out, work *buffer.Buffer) error {
	o.correction.Advance()

	n := work.Frames()

	if o.cfg.ParallelSources && work.Channels() > 1 {
		var g errgroup.Group
		for ch := range work.Channels() {
			g.Go(func() error { return o.render(work, ch) })
		}

		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for ch := range work.Channels() {
			if err := o.render(work, ch); err != nil {
				return err
			}
		}
	}

	l, r := out.Channel(0), out.Channel(1)
	for ch := range work.Channels() {
		vector.Add(l, l, o.left[ch][:n])
		vector.Add(r, r, o.right[ch][:n])
	}

	return nil
}

// render corrects channel ch of work in place and renders it into the
// channel's binaural scratch pair.
func (o *Orchestrator) render(work *buffer.Buffer, ch int) error {
	n := work.Frames()
	x := work.Channel(ch)

	if err := o.correction.ProcessChannel(ch, x); err != nil {
		return err
	}

	if err := o.renderers[ch].ProcessSpatialAudio(x, o.left[ch][:n], o.right[ch][:n]); err != nil {
		return fmt.Errorf("channel %d: %w", ch, err)
	}

	return nil
}

// passThrough mixes the DSP output into a zeroed stereo buffer: mono feeds
// both sides, even channels go left and odd channels right.
func passThrough(out, work *buffer.Buffer) {
	l, r := out.Channel(0), out.Channel(1)

	n := work.Channels()
	if n == 1 {
		copy(l, work.Channel(0))
		copy(r, work.Channel(0))

		return
	}

	left, right := float64((n+1)/2), float64(n/2)
	for ch := range n {
		if ch%2 == 0 {
			vector.AddScaled(l, work.Channel(ch), 1/left)
		} else {
			vector.AddScaled(r, work.Channel(ch), 1/right)
		}
	}
}

// account records the latency of one delivered buffer and moves in or out
// of bypass.
func (o *Orchestrator) account(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	budget := o.cfg.LatencyBudgetMs

	o.rec.latency(ms)

	if ms > budget {
		o.rec.m.Overruns++
	}

	if ms > budget*o.cfg.FatalLatencyMultiplier {
		o.rec.m.FatalOverruns++
		o.fatalRun++
	} else {
		o.fatalRun = 0
	}

	if !o.autoBypass {
		if o.fatalRun >= o.cfg.BypassTrigger {
			o.setBypass(o.manualBypass, true, "latency")
		}
	} else {
		if ms < budget/2 {
			o.calmRun++
		} else {
			o.calmRun = 0
		}

		if o.calmRun >= o.cfg.BypassRecovery {
			o.setBypass(o.manualBypass, false, "recovered")
		}
	}

	o.publish()
}

// setBypass records the manual and automatic bypass requests. The spatial
// stages are skipped while either is set; a transition is counted only
// when the effective state changes.
func (o *Orchestrator) setBypass(manual, auto bool, reason string) {
	if manual == o.manualBypass && auto == o.autoBypass {
		return
	}

	o.manualBypass, o.autoBypass = manual, auto
	o.rec.m.ManualBypass, o.rec.m.AutoBypass = manual, auto
	o.fatalRun, o.calmRun = 0, 0

	on := manual || auto
	if o.bypassed == on {
		return
	}

	o.bypassed = on
	o.bypassFlag.Store(on)
	o.failWarned = false
	o.rec.m.Bypassed = on
	o.rec.m.BypassTransitions++

	entry := o.log.WithFields(logrus.Fields{"bypassed": on, "reason": reason, "manual": manual, "auto": auto})
	if on {
		entry.Warn("entering bypass")
		return
	}

	// Stale tails from before the bypass would click on return.
	o.correction.Reset()

	for _, r := range o.renderers {
		if err := r.Reset(); err != nil {
			entry.WithError(err).Warn("renderer reset")
		}
	}

	entry.Info("leaving bypass")
}

// publish copies the recorder into the snapshot read by Metrics.
func (o *Orchestrator) publish() {
	o.snapMu.Lock()
	o.rec.snapshot(&o.snapshot, o.clock.Now())
	o.snapMu.Unlock()
}

// Metrics returns the counters published after the last buffer together
// with the live pool utilization and operation count.
func (o *Orchestrator) Metrics() Metrics {
	o.snapMu.RLock()
	m := o.snapshot
	o.snapMu.RUnlock()

	m.BufferPoolUtilization = o.pool.Utilization()
	m.ActiveOperationCount = int(o.active.Load())

	return m
}

// ResetMetrics clears latency and counters. Bypass state is kept.
func (o *Orchestrator) ResetMetrics() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.rec.reset()
	o.publish()
}

// Bypassed reports whether the spatial stages are skipped.
func (o *Orchestrator) Bypassed() bool { return o.bypassFlag.Load() }

// SetBypassed forces bypass on or releases a forced bypass. Latency
// recovery never clears a forced bypass, and releasing it leaves an
// automatic bypass in place until the load subsides.
func (o *Orchestrator) SetBypassed(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setBypass(on, o.autoBypass, "manual")
	o.publish()
}

// SetGainDB sets the DSP stage gain.
func (o *Orchestrator) SetGainDB(db float64) error { return o.stage.SetGainDB(db) }

// SetBand updates one equalizer band.
func (o *Orchestrator) SetBand(index int, freq, gainDB, q float64) error {
	return o.stage.SetBand(index, freq, gainDB, q)
}

// SourcePosition returns the position of channel ch relative to the
// listener.
func (o *Orchestrator) SourcePosition(ch int) (spatial.Vec3, error) {
	if ch < 0 || ch >= len(o.renderers) {
		return spatial.Vec3{}, fmt.Errorf("%w: channel %d", ErrInvalidArgument, ch)
	}

	o.posMu.Lock()
	defer o.posMu.Unlock()

	return o.sources[ch], nil
}

// SetSourcePosition moves channel ch to pos, relative to the listener. The
// room model follows the centroid of all sources.
func (o *Orchestrator) SetSourcePosition(ch int, pos spatial.Vec3) error {
	if ch < 0 || ch >= len(o.renderers) {
		return fmt.Errorf("%w: channel %d", ErrInvalidArgument, ch)
	}

	if !pos.IsFinite() || pos.Norm() == 0 {
		return fmt.Errorf("%w: source %v", ErrInvalidArgument, pos)
	}

	if err := o.renderers[ch].SetSourcePosition(o.listener.Add(pos)); err != nil {
		return err
	}

	o.posMu.Lock()
	o.sources[ch] = pos
	src := roomSource(o.model.Geometry(), o.listener, o.sources)
	o.posMu.Unlock()

	return o.model.SetSource(src)
}

// MeasureTHDN runs the probe tone through a fresh copy of the current DSP
// parameters followed by the output clip, stores the THD+N in the metrics
// and returns it in percent. A spectral analysis of the same tone splits
// the result into harmonic distortion and residual noise.
func (o *Orchestrator) MeasureTHDN() (float64, error) {
	probe, err := o.stage.Clone()
	if err != nil {
		return 0, err
	}

	sr := o.cfg.SampleRate
	settle := int(room.ProbeSettle * sr)
	x := vector.MakeAligned(settle+int(room.ProbeAnalysis*sr), o.cfg.Alignment)

	tone := signal.Tone{Frequency: room.ProbeFrequency, Amplitude: room.ProbeAmplitude}
	if err := signal.NewGenerator(core.WithSampleRate(sr)).Fill(x, tone); err != nil {
		return 0, err
	}

	for off := 0; off < len(x); off += o.cfg.BufferSize {
		if err := probe.ProcessChannel(0, x[off:min(off+o.cfg.BufferSize, len(x))]); err != nil {
			return 0, err
		}
	}

	vector.Clip(x, x, -1, 1)

	fit, err := thd.SineFit(x[settle:], room.ProbeFrequency, sr)
	if err != nil {
		return 0, err
	}

	split := thd.AnalyzeSignal(x[settle:], thd.Config{SampleRate: sr, FundamentalFreq: room.ProbeFrequency})

	o.mu.Lock()
	o.rec.m.THDPlusNoise = fit.Percent()
	o.rec.m.HarmonicDistortion = split.THD * 100
	o.rec.m.ResidualNoise = split.Noise * 100
	o.publish()
	o.mu.Unlock()

	return fit.Percent(), nil
}

// ProposeCorrection submits a room correction to the quality gate. A nil
// src derives the correction from the room model. The measured THD+N is
// recorded whether or not the update is accepted.
func (o *Orchestrator) ProposeCorrection(src room.CorrectionSource) (float64, error) {
	if src == nil {
		src = o.model.Target(o.cfg.SampleRate)
	}

	thdn, err := o.correction.ProposeCorrection(src)

	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case errors.Is(err, room.ErrQualityThresholdExceeded):
		o.rec.m.CorrectionRejections++
		o.rec.m.THDPlusNoise = thdn
		o.log.WithField("thdn_percent", thdn).Warn("room correction rejected")
	case err != nil:
		o.log.WithError(err).Warn("room correction invalid")
	default:
		o.rec.m.THDPlusNoise = thdn
		o.log.WithField("thdn_percent", thdn).Info("room correction accepted")
	}

	o.publish()

	return thdn, err
}

// roomSource places the modeled source at the centroid of the channel
// sources, kept inside the room.
func roomSource(g room.Geometry, listener spatial.Vec3, sources []spatial.Vec3) spatial.Vec3 {
	var c spatial.Vec3
	for _, s := range sources {
		c = c.Add(s)
	}

	c = listener.Add(c.Scale(1 / float64(len(sources))))

	return spatial.Vec3{
		X: core.Clamp(c.X, 0, g.Width),
		Y: core.Clamp(c.Y, 0, g.Length),
		Z: core.Clamp(c.Z, 0, g.Height),
	}
}

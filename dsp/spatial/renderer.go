package spatial

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-spatial/dsp/conv"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/delay"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

var (
	// ErrBusy is returned when ProcessSpatialAudio or Reset is entered while
	// another call on the same Renderer is running.
	ErrBusy = fmt.Errorf("spatial: %w", core.ErrBusy)
	// ErrInvalidInput reports empty input or mismatched buffer lengths.
	ErrInvalidInput = fmt.Errorf("spatial: %w", core.ErrInvalidInput)
	// ErrProcessing reports a convolution failure or non-finite output.
	ErrProcessing = fmt.Errorf("spatial: %w", core.ErrProcessing)
)

const (
	stateIdle int32 = iota
	stateRendering
)

// Resolved is the source direction relative to the listener's head as
// committed by the last successful buffer.
type Resolved struct {
	Azimuth   float64
	Elevation float64
	Distance  float64
}

type rendererConfig struct {
	maxBlock    int
	quality     Quality
	tracker     *HeadTracker
	source      Vec3
	listener    Vec3
	attenuation bool
	air         bool
}

// RendererOption configures a Renderer.
type RendererOption func(*rendererConfig)

// WithMaxBlock sets the largest buffer accepted by ProcessSpatialAudio.
// Default core.DefaultBufferFrames.
func WithMaxBlock(n int) RendererOption {
	return func(cfg *rendererConfig) { cfg.maxBlock = n }
}

// WithQuality sets the initial resolution tier. Default QualityHigh.
func WithQuality(q Quality) RendererOption {
	return func(cfg *rendererConfig) { cfg.quality = q }
}

// WithHeadTracker sets the orientation source. Without one the head faces
// straight ahead.
func WithHeadTracker(t *HeadTracker) RendererOption {
	return func(cfg *rendererConfig) { cfg.tracker = t }
}

// WithSourcePosition sets the initial source position. Default 2 m ahead.
func WithSourcePosition(p Vec3) RendererOption {
	return func(cfg *rendererConfig) { cfg.source = p }
}

// WithListenerPosition sets the initial listener position. Default origin.
func WithListenerPosition(p Vec3) RendererOption {
	return func(cfg *rendererConfig) { cfg.listener = p }
}

// WithDistanceAttenuation enables inverse-distance gain. Default on.
func WithDistanceAttenuation(on bool) RendererOption {
	return func(cfg *rendererConfig) { cfg.attenuation = on }
}

// WithAirAbsorption enables the distance-dependent high-shelf cut.
// Default on.
func WithAirAbsorption(on bool) RendererOption {
	return func(cfg *rendererConfig) { cfg.air = on }
}

// Renderer spatializes one mono source into a left/right pair. A Renderer
// is not reentrant: a concurrent second call fails with ErrBusy. Setters
// are safe from any goroutine and take effect at the next buffer.
type Renderer struct {
	db         *Database
	sampleRate float64
	maxBlock   int
	tracker    *HeadTracker

	state       atomic.Int32
	source      atomic.Pointer[Vec3]
	listener    atomic.Pointer[Vec3]
	quality     atomic.Int32
	attenuation atomic.Bool
	air         atomic.Bool

	resolvedMu sync.Mutex
	resolved   Resolved

	// Owned by the rendering goroutine.
	next, cur      CoefficientSet
	committed      bool
	convL, convR   *conv.BlockConvolver
	prevL, prevR   *conv.BlockConvolver
	delayL, delayR *delay.Line
	airL, airR     biquad.Section
	gain           float64
	delL, delR     float64
	scratch        []float64
}

// NewRenderer creates a renderer reading responses from db.
func NewRenderer(db *Database, opts ...RendererOption) (*Renderer, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrDatabase)
	}

	cfg := rendererConfig{
		maxBlock:    core.DefaultBufferFrames,
		quality:     QualityHigh,
		source:      Vec3{Y: 2},
		attenuation: true,
		air:         true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.maxBlock < 1 || cfg.maxBlock > core.MaxBufferFrames {
		return nil, fmt.Errorf("%w: max block %d outside [1, %d]", ErrInvalidArgument, cfg.maxBlock, core.MaxBufferFrames)
	}

	if cfg.quality < QualityStandard || cfg.quality > QualityPremium {
		return nil, fmt.Errorf("%w: quality %v", ErrInvalidArgument, cfg.quality)
	}

	if !cfg.source.IsFinite() || !cfg.listener.IsFinite() {
		return nil, fmt.Errorf("%w: non-finite position", ErrInvalidArgument)
	}

	g := db.Grid()
	r := &Renderer{
		db:         db,
		sampleRate: g.SampleRate,
		maxBlock:   cfg.maxBlock,
		tracker:    cfg.tracker,
		next:       NewCoefficientSet(g.Length),
		cur:        NewCoefficientSet(g.Length),
		airL:       biquad.Section{Coefficients: biquad.Identity},
		airR:       biquad.Section{Coefficients: biquad.Identity},
		scratch:    vector.MakeAligned(cfg.maxBlock, core.DefaultAlignment),
	}

	var err error
	for _, c := range []**conv.BlockConvolver{&r.convL, &r.convR, &r.prevL, &r.prevR} {
		if *c, err = conv.NewBlockConvolver(g.Length, cfg.maxBlock); err != nil {
			return nil, err
		}
	}

	maxDelay := int(math.Ceil(db.MaxDelay())) + 1
	if r.delayL, err = delay.New(maxDelay); err != nil {
		return nil, err
	}

	if r.delayR, err = delay.New(maxDelay); err != nil {
		return nil, err
	}

	r.source.Store(&cfg.source)
	r.listener.Store(&cfg.listener)
	r.quality.Store(int32(cfg.quality))
	r.attenuation.Store(cfg.attenuation)
	r.air.Store(cfg.air)

	return r, nil
}

// SetSourcePosition moves the source. Non-finite positions are rejected.
func (r *Renderer) SetSourcePosition(p Vec3) error {
	if !p.IsFinite() {
		return fmt.Errorf("%w: source %+v", ErrInvalidArgument, p)
	}

	r.source.Store(&p)

	return nil
}

// SourcePosition returns the current source position.
func (r *Renderer) SourcePosition() Vec3 { return *r.source.Load() }

// SetListenerPosition moves the listener. Non-finite positions are
// rejected.
func (r *Renderer) SetListenerPosition(p Vec3) error {
	if !p.IsFinite() {
		return fmt.Errorf("%w: listener %+v", ErrInvalidArgument, p)
	}

	r.listener.Store(&p)

	return nil
}

// ListenerPosition returns the current listener position.
func (r *Renderer) ListenerPosition() Vec3 { return *r.listener.Load() }

// SetQuality switches the resolution tier.
func (r *Renderer) SetQuality(q Quality) error {
	if q < QualityStandard || q > QualityPremium {
		return fmt.Errorf("%w: quality %v", ErrInvalidArgument, q)
	}

	r.quality.Store(int32(q))

	return nil
}

// Quality returns the active tier.
func (r *Renderer) Quality() Quality { return Quality(r.quality.Load()) }

// SetDistanceAttenuation toggles inverse-distance gain.
func (r *Renderer) SetDistanceAttenuation(on bool) { r.attenuation.Store(on) }

// SetAirAbsorption toggles the air absorption shelf.
func (r *Renderer) SetAirAbsorption(on bool) { r.air.Store(on) }

// Resolved returns the direction committed by the last successful buffer.
func (r *Renderer) Resolved() Resolved {
	r.resolvedMu.Lock()
	defer r.resolvedMu.Unlock()

	return r.resolved
}

// MaxBlock returns the largest accepted buffer length.
func (r *Renderer) MaxBlock() int { return r.maxBlock }

// Reset clears convolution, delay and filter state and forgets the
// committed response set. Positions and settings are kept.
func (r *Renderer) Reset() error {
	if !r.state.CompareAndSwap(stateIdle, stateRendering) {
		return ErrBusy
	}
	defer r.state.Store(stateIdle)

	r.clearState()
	r.committed = false

	return nil
}

// ProcessSpatialAudio renders in into outL and outR, which must have the
// same length as in. On error the outputs are zeroed and the committed
// direction and response set are left unchanged.
func (r *Renderer) ProcessSpatialAudio(in, outL, outR []float64) error {
	if !r.state.CompareAndSwap(stateIdle, stateRendering) {
		return ErrBusy
	}
	defer r.state.Store(stateIdle)

	n := len(in)
	if n == 0 {
		return fmt.Errorf("%w: empty input", ErrInvalidInput)
	}

	if len(outL) != n || len(outR) != n {
		return fmt.Errorf("%w: outputs %d/%d, input %d", ErrInvalidInput, len(outL), len(outR), n)
	}

	if n > r.maxBlock {
		return fmt.Errorf("%w: %d frames exceeds max block %d", ErrInvalidInput, n, r.maxBlock)
	}

	q := Quality(r.quality.Load())
	head := r.tracker.Latest().Rotation
	rel := r.source.Load().Sub(*r.listener.Load())
	az, el, dist := head.Conjugate().Rotate(rel).Spherical()

	if err := r.db.Lookup(az, el, dist, q, &r.next); err != nil {
		return r.fail(outL, outR, err)
	}

	if err := r.convolve(in, outL, outR, q); err != nil {
		return r.fail(outL, outR, err)
	}

	r.applyDelay(outL, outR, q)

	gain := 1.0
	if r.attenuation.Load() {
		gain = DistanceGain(dist)
	}

	from := gain
	if r.committed {
		from = r.gain
	}

	vector.Ramp(outL, outL, from, gain)
	vector.Ramp(outR, outR, from, gain)

	if r.air.Load() {
		c := airShelf(dist, r.sampleRate)
		r.airL.Coefficients = c
		r.airR.Coefficients = c
		r.airL.ProcessBlock(outL)
		r.airR.ProcessBlock(outR)
	}

	if !core.AllFinite(outL) || !core.AllFinite(outR) {
		return r.fail(outL, outR, fmt.Errorf("non-finite output at az %.1f el %.1f d %.2f", az, el, dist))
	}

	r.cur, r.next = r.next, r.cur
	r.committed = true
	r.gain = gain
	r.delL, r.delR = r.cur.DelayLeft, r.cur.DelayRight

	r.resolvedMu.Lock()
	r.resolved = Resolved{Azimuth: az, Elevation: el, Distance: dist}
	r.resolvedMu.Unlock()

	return nil
}

func (r *Renderer) convolve(in, outL, outR []float64, q Quality) error {
	if !r.committed || !slices.Equal(r.next.Left, r.cur.Left) || !slices.Equal(r.next.Right, r.cur.Right) {
		if err := r.convL.SetKernel(r.next.Left); err != nil {
			return err
		}

		if err := r.convR.SetKernel(r.next.Right); err != nil {
			return err
		}
	}

	if err := r.convL.Process(outL, in); err != nil {
		return err
	}

	if err := r.convR.Process(outR, in); err != nil {
		return err
	}

	if q != QualityPremium {
		return nil
	}

	// The previous set runs on the same input so its history stays in
	// step; its output is faded out while the new set fades in.
	if r.committed && (!slices.Equal(r.prevL.Kernel(), r.cur.Left) || !slices.Equal(r.prevR.Kernel(), r.cur.Right)) {
		if err := r.prevL.SetKernel(r.cur.Left); err != nil {
			return err
		}

		if err := r.prevR.SetKernel(r.cur.Right); err != nil {
			return err
		}
	}

	old := r.scratch[:len(in)]
	for _, p := range [...]struct {
		c   *conv.BlockConvolver
		out []float64
	}{{r.prevL, outL}, {r.prevR, outR}} {
		if err := p.c.Process(old, in); err != nil {
			return err
		}

		if r.committed {
			crossfade(p.out, old)
		}
	}

	return nil
}

// crossfade blends from old into dst with a linear ramp that reaches dst
// on the last sample.
func crossfade(dst, old []float64) {
	step := 1 / float64(len(dst))
	for i := range dst {
		w := step * float64(i+1)
		dst[i] = old[i] + w*(dst[i]-old[i])
	}
}

func (r *Renderer) applyDelay(outL, outR []float64, q Quality) {
	toL, toR := r.next.DelayLeft, r.next.DelayRight

	fromL, fromR := toL, toR
	if r.committed && q != QualityStandard {
		fromL, fromR = r.delL, r.delR
	}

	r.delayL.Process(outL, outL, fromL, toL)
	r.delayR.Process(outR, outR, fromR, toR)
}

func (r *Renderer) fail(outL, outR []float64, cause error) error {
	clear(outL)
	clear(outR)
	r.clearState()

	return fmt.Errorf("%w: %w", ErrProcessing, cause)
}

func (r *Renderer) clearState() {
	r.convL.Reset()
	r.convR.Reset()
	r.prevL.Reset()
	r.prevR.Reset()
	r.delayL.Reset()
	r.delayR.Reset()
	r.airL.Reset()
	r.airR.Reset()
}

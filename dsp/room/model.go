package room

import (
	"fmt"
	"math"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
	"github.com/cwbudde/algo-spatial/dsp/spectrum"
	"github.com/cwbudde/algo-spatial/measure/ir"
	"github.com/sirupsen/logrus"
)

// DefaultOrder is the reflection order used when none is configured.
const DefaultOrder = 3

// minResponseSize keeps at least one FFT bin inside the lowest
// one-third-octave band at 48 kHz.
const minResponseSize = 1 << 14

// Model owns a room description and caches its reflection paths. All
// methods are safe for concurrent use; none of them run on the audio path.
type Model struct {
	mu       sync.Mutex
	geometry Geometry
	source   spatial.Vec3
	listener spatial.Vec3
	order    int

	paths      []ReflectionPath
	valid      bool
	recomputed int

	log logrus.FieldLogger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithOrder sets the maximum reflection order.
func WithOrder(n int) ModelOption {
	return func(m *Model) { m.order = n }
}

// WithLogger routes cache recomputation messages to l.
func WithLogger(l logrus.FieldLogger) ModelOption {
	return func(m *Model) { m.log = l }
}

// NewModel validates the room and computes the initial reflection set.
func NewModel(g Geometry, source, listener spatial.Vec3, opts ...ModelOption) (*Model, error) {
	m := &Model{
		geometry: g,
		source:   source,
		listener: listener,
		order:    DefaultOrder,
		log:      logrus.StandardLogger(),
	}

	for _, o := range opts {
		o(m)
	}

	m.log = m.log.WithField("component", "room")

	if _, err := m.Reflections(); err != nil {
		return nil, err
	}

	return m, nil
}

// Geometry returns the room description.
func (m *Model) Geometry() Geometry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.geometry
}

// Source returns the source position.
func (m *Model) Source() spatial.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.source
}

// Listener returns the listener position.
func (m *Model) Listener() spatial.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.listener
}

// Order returns the maximum reflection order.
func (m *Model) Order() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.order
}

// SetGeometry replaces the room. Positions must still lie inside it.
func (m *Model) SetGeometry(g Geometry) error {
	return m.update(func(c *Model) { c.geometry = g })
}

// SetSource moves the source.
func (m *Model) SetSource(p spatial.Vec3) error {
	return m.update(func(c *Model) { c.source = p })
}

// SetListener moves the listener.
func (m *Model) SetListener(p spatial.Vec3) error {
	return m.update(func(c *Model) { c.listener = p })
}

// SetOrder changes the maximum reflection order.
func (m *Model) SetOrder(n int) error {
	return m.update(func(c *Model) { c.order = n })
}

// update applies fn to a copy of the parameters, validates the copy and
// commits it. The cache is dropped only when something changed.
func (m *Model) update(fn func(*Model)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := Model{geometry: m.geometry, source: m.source, listener: m.listener, order: m.order}
	fn(&next)

	if err := validate(next.geometry, next.source, next.listener, next.order); err != nil {
		return err
	}

	if next.geometry == m.geometry && next.source == m.source &&
		next.listener == m.listener && next.order == m.order {
		return nil
	}

	m.geometry, m.source, m.listener, m.order = next.geometry, next.source, next.listener, next.order
	m.valid = false

	return nil
}

// Reflections returns the cached paths, recomputing them after a parameter
// change. The returned slice is shared and must not be modified.
func (m *Model) Reflections() ([]ReflectionPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reflections()
}

// Recomputations reports how often the reflection set was rebuilt.
func (m *Model) Recomputations() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.recomputed
}

func (m *Model) reflections() ([]ReflectionPath, error) {
	if m.valid {
		return m.paths, nil
	}

	paths, err := ImageSources(m.geometry, m.source, m.listener, m.order)
	if err != nil {
		return nil, err
	}

	m.paths, m.valid = paths, true
	m.recomputed++

	m.log.WithFields(logrus.Fields{
		"paths": len(paths),
		"order": m.order,
	}).Debug("reflections recomputed")

	return paths, nil
}

// ImpulseResponse renders the direct path and every reflection as taps at
// fractional delays, splitting each tap linearly between its two nearest
// samples. Paths beyond length are dropped.
func (m *Model) ImpulseResponse(sampleRate float64, length int) ([]float64, error) {
	if !core.ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidArgument, sampleRate)
	}

	if length < 1 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	paths, err := m.reflections()
	if err != nil {
		return nil, err
	}

	out := make([]float64, length)
	place(out, DirectPath(m.source, m.listener), sampleRate)

	for _, p := range paths {
		place(out, p, sampleRate)
	}

	return out, nil
}

func place(h []float64, p ReflectionPath, sampleRate float64) {
	pos := p.Delay * sampleRate
	i := int(math.Floor(pos))
	frac := pos - float64(i)

	if i < len(h) {
		h[i] += p.Amplitude * (1 - frac)
	}

	if i+1 < len(h) {
		h[i+1] += p.Amplitude * frac
	}
}

// ResponseLength returns the impulse response length used by Response: the
// latest arrival rounded up to a power of two, at least minResponseSize.
func (m *Model) ResponseLength(sampleRate float64) (int, error) {
	paths, err := m.Reflections()
	if err != nil {
		return 0, err
	}

	latest := DirectPath(m.Source(), m.Listener()).Delay
	if len(paths) > 0 {
		latest = math.Max(latest, paths[len(paths)-1].Delay)
	}

	n := minResponseSize
	for float64(n) < latest*sampleRate+2 {
		n <<= 1
	}

	return n, nil
}

// Response returns the modeled level in dB at each centre frequency. The
// power spectrum is averaged over one third of an octave around each
// centre, falling back to the nearest bin when the band is narrower than
// the bin spacing.
func (m *Model) Response(sampleRate float64, centres []float64) ([]float64, error) {
	for _, f := range centres {
		if !(f > 0) || f >= sampleRate/2 {
			return nil, fmt.Errorf("%w: centre %g Hz outside (0, %g)", ErrInvalidArgument, f, sampleRate/2)
		}
	}

	n, err := m.ResponseLength(sampleRate)
	if err != nil {
		return nil, err
	}

	h, err := m.ImpulseResponse(sampleRate, n)
	if err != nil {
		return nil, err
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("room: response plan: %w", err)
	}

	in := make([]complex128, n)
	for i, v := range h {
		in[i] = complex(v, 0)
	}

	spec := make([]complex128, n)
	if err := plan.Forward(spec, in); err != nil {
		return nil, fmt.Errorf("room: response transform: %w", err)
	}

	power := spectrum.Power(spec[:n/2+1])

	return smoothThirdOctave(power, sampleRate/float64(n), centres), nil
}

func smoothThirdOctave(power []float64, binHz float64, centres []float64) []float64 {
	edge := math.Pow(2, 1.0/6)
	out := make([]float64, len(centres))

	for k, fc := range centres {
		lo := int(math.Ceil(fc / edge / binHz))
		hi := min(int(math.Floor(fc*edge/binHz)), len(power)-1)

		var sum float64

		count := 0
		for i := max(lo, 1); i <= hi; i++ {
			sum += power[i]
			count++
		}

		if count == 0 {
			sum, count = power[min(int(math.Round(fc/binHz)), len(power)-1)], 1
		}

		out[k] = core.LinearPowerToDB(sum / float64(count))
	}

	return out
}

// DeriveCorrection returns per-band gains flattening the modeled response
// around its mean level, with boosts clamped to maxBoostDB.
func (m *Model) DeriveCorrection(sampleRate float64, centres []float64, maxBoostDB float64) ([]float64, error) {
	resp, err := m.Response(sampleRate, centres)
	if err != nil {
		return nil, err
	}

	return flatten(resp, maxBoostDB), nil
}

// Target adapts the model to a CorrectionSource at sampleRate.
func (m *Model) Target(sampleRate float64) CorrectionSource {
	return modelTarget{m: m, sampleRate: sampleRate}
}

type modelTarget struct {
	m          *Model
	sampleRate float64
}

func (t modelTarget) CorrectionGains(centres []float64, maxBoostDB float64) ([]float64, error) {
	return t.m.DeriveCorrection(t.sampleRate, centres, maxBoostDB)
}

// Acoustics analyzes the modeled impulse response.
func (m *Model) Acoustics(sampleRate float64) (ir.Metrics, error) {
	a, err := ir.NewAnalyzer(sampleRate)
	if err != nil {
		return ir.Metrics{}, err
	}

	n, err := m.ResponseLength(sampleRate)
	if err != nil {
		return ir.Metrics{}, err
	}

	h, err := m.ImpulseResponse(sampleRate, n)
	if err != nil {
		return ir.Metrics{}, err
	}

	return a.Analyze(h)
}

func validate(g Geometry, source, listener spatial.Vec3, order int) error {
	if err := g.Validate(); err != nil {
		return err
	}

	if order < 1 || order > MaxOrder {
		return fmt.Errorf("%w: reflection order %d outside [1, %d]", ErrInvalidArgument, order, MaxOrder)
	}

	if !g.Contains(source) || !g.Contains(listener) {
		return fmt.Errorf("%w: source %v or listener %v outside the room", ErrInvalidArgument, source, listener)
	}

	return nil
}

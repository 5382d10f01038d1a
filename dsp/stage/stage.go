package stage

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-spatial/dsp/buffer"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
)

var (
	// ErrInvalidArgument reports a rejected parameter update.
	ErrInvalidArgument = fmt.Errorf("stage: %w", core.ErrInvalidArgument)
	// ErrConfiguration reports an invalid Config.
	ErrConfiguration = fmt.Errorf("stage: %w", core.ErrConfiguration)
	// ErrAlignment reports a channel plane that is not vector aligned.
	ErrAlignment = fmt.Errorf("stage: %w", core.ErrAlignment)
	// ErrLayout reports a buffer that is not planar or has too many
	// channels.
	ErrLayout = fmt.Errorf("stage: %w", core.ErrInvalidInput)
)

// Config describes a Stage.
type Config struct {
	SampleRate float64
	Channels   int
	EQBands    int
	GainDB     float64
}

// DefaultConfig returns a stereo 48 kHz stage with the 28-band ISO layout.
func DefaultConfig() Config {
	return Config{
		SampleRate: core.DefaultSampleRate,
		Channels:   2,
		EQBands:    len(design.ISOThirdOctave),
	}
}

// Stage applies gain, denormal guard and equalization per channel.
type Stage struct {
	cfg     Config
	gain    *Gain
	eq      *Equalizer
	applied []float64 // last gain factor per channel

	flushed atomic.Uint64
}

// New validates cfg and builds a Stage with zero filter state.
func New(cfg Config) (*Stage, error) {
	if !core.ValidSampleRate(cfg.SampleRate) {
		return nil, fmt.Errorf("%w: sample rate %g", ErrConfiguration, cfg.SampleRate)
	}

	if cfg.Channels < 1 || cfg.Channels > core.MaxChannels {
		return nil, fmt.Errorf("%w: channels %d outside [1, %d]", ErrConfiguration, cfg.Channels, core.MaxChannels)
	}

	g, err := newGain(cfg.GainDB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	eq, err := NewEqualizer(cfg.SampleRate, cfg.Channels, cfg.EQBands)
	if err != nil {
		return nil, err
	}

	s := &Stage{
		cfg:     cfg,
		gain:    g,
		eq:      eq,
		applied: make([]float64, cfg.Channels),
	}

	for i := range s.applied {
		s.applied[i] = g.Linear()
	}

	return s, nil
}

// Clone returns a new Stage with the current parameters and fresh state.
func (s *Stage) Clone() (*Stage, error) {
	cfg := s.cfg
	cfg.GainDB = s.gain.DB()

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if err := c.eq.SetBands(s.eq.Bands()); err != nil {
		return nil, err
	}

	return c, nil
}

// Config returns the construction parameters.
func (s *Stage) Config() Config { return s.cfg }

// Equalizer exposes the band controls.
func (s *Stage) Equalizer() *Equalizer { return s.eq }

// SetGainDB publishes a new gain. See Gain.SetDB.
func (s *Stage) SetGainDB(db float64) error { return s.gain.SetDB(db) }

// GainDB returns the published gain in dB.
func (s *Stage) GainDB() float64 { return s.gain.DB() }

// SetBand forwards to Equalizer.SetBand.
func (s *Stage) SetBand(index int, freq, gainDB, q float64) error {
	return s.eq.SetBand(index, freq, gainDB, q)
}

// SetBandEnabled forwards to Equalizer.SetBandEnabled.
func (s *Stage) SetBandEnabled(index int, enabled bool) error {
	return s.eq.SetBandEnabled(index, enabled)
}

// Band forwards to Equalizer.Band.
func (s *Stage) Band(index int) (BandSetting, error) { return s.eq.Band(index) }

// Bands forwards to Equalizer.Bands.
func (s *Stage) Bands() []BandSetting { return s.eq.Bands() }

// ResetBands forwards to Equalizer.ResetBands.
func (s *Stage) ResetBands() { s.eq.ResetBands() }

// Flushed returns the number of samples zeroed by the denormal guard.
func (s *Stage) Flushed() uint64 { return s.flushed.Load() }

// Process runs every channel of a planar buffer in place. Each channel
// plane must satisfy the buffer's alignment.
func (s *Stage) Process(buf *buffer.Buffer) error {
	if buf.Layout() != buffer.LayoutPlanar && buf.Channels() > 1 {
		return fmt.Errorf("%w: %s buffer, want planar", ErrLayout, buf.Layout())
	}

	if buf.Channels() > s.cfg.Channels {
		return fmt.Errorf("%w: %d channels, stage has %d", ErrLayout, buf.Channels(), s.cfg.Channels)
	}

	if !buf.Aligned() {
		return fmt.Errorf("%w: channel plane not %d-byte aligned", ErrAlignment, buf.Alignment())
	}

	// One parameter set per call so every channel sees the same update.
	target, snap := s.gain.Linear(), s.eq.snap.Load()
	for ch := range buf.Channels() {
		s.process(ch, buf.Channel(ch), target, snap)
	}

	return nil
}

// ProcessChannel runs one channel in place for callers that manage their
// own storage.
func (s *Stage) ProcessChannel(ch int, x []float64) error {
	if ch < 0 || ch >= s.cfg.Channels {
		return fmt.Errorf("%w: channel %d outside [0, %d)", ErrInvalidArgument, ch, s.cfg.Channels)
	}

	s.process(ch, x, s.gain.Linear(), s.eq.snap.Load())

	return nil
}

func (s *Stage) process(ch int, x []float64, target float64, snap *eqSnapshot) {
	if len(x) == 0 {
		return
	}

	ramp(x, &s.applied[ch], target)
	n := Guard(x)

	s.eq.process(snap, ch, x)
	n += Guard(x)

	if n > 0 {
		s.flushed.Add(uint64(n))
	}
}

// Reset clears filter state and settles each channel's gain on the
// published target. Parameters are kept.
func (s *Stage) Reset() {
	s.eq.Reset()

	for i := range s.applied {
		s.applied[i] = s.gain.Linear()
	}
}

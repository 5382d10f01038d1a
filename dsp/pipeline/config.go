package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/room"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration reports an invalid Config.
var ErrConfiguration = fmt.Errorf("pipeline: %w", core.ErrConfiguration)

// Dimensions of the room in metres.
type Dimensions struct {
	Width  float64 `yaml:"width"`
	Length float64 `yaml:"length"`
	Height float64 `yaml:"height"`
}

// RoomConfig describes the modeled listening room.
type RoomConfig struct {
	Dimensions Dimensions `yaml:"dimensions"`
	// Absorption holds the amplitude reflection coefficient of each surface.
	Absorption      room.Surfaces `yaml:"absorption"`
	ReflectionOrder int           `yaml:"reflection_order"`
	MaxBoostDB      float64       `yaml:"max_boost_db"`
}

// Geometry converts the configuration into a room description.
func (r RoomConfig) Geometry() room.Geometry {
	return room.Geometry{
		Width:    r.Dimensions.Width,
		Length:   r.Dimensions.Length,
		Height:   r.Dimensions.Height,
		Surfaces: r.Absorption,
	}
}

// Config is the complete pipeline configuration.
type Config struct {
	SampleRate           float64 `yaml:"sample_rate"`
	BitDepth             int     `yaml:"bit_depth"`
	BufferSize           int     `yaml:"buffer_size"`
	ChannelCount         int     `yaml:"channel_count"`
	LatencyBudgetMs      float64 `yaml:"latency_budget_ms"`
	EQBandCount          int     `yaml:"eq_band_count"`
	HRTFQuality          string  `yaml:"hrtf_quality"`
	THDNThresholdPercent float64 `yaml:"thdn_threshold_percent"`
	PoolSize             int     `yaml:"pool_size"`
	Alignment            int     `yaml:"alignment"`

	FatalLatencyMultiplier float64 `yaml:"fatal_latency_multiplier"`
	BypassTrigger          int     `yaml:"bypass_trigger"`
	BypassRecovery         int     `yaml:"bypass_recovery"`

	Room RoomConfig `yaml:"room"`

	// Sources holds one position per channel relative to the listener:
	// x right, y front, z up, in metres.
	Sources []spatial.Vec3 `yaml:"sources"`
	// Listener is the listener position in room coordinates. Nil places the
	// listener at the room centre.
	Listener *spatial.Vec3 `yaml:"listener"`

	DistanceAttenuation bool `yaml:"distance_attenuation"`
	AirAbsorption       bool `yaml:"air_absorption"`
	ParallelSources     bool `yaml:"parallel_sources"`
}

// DefaultConfig returns a stereo 48 kHz configuration with a 10 ms budget.
func DefaultConfig() Config {
	return Config{
		SampleRate:           core.DefaultSampleRate,
		BitDepth:             24,
		BufferSize:           core.DefaultBufferFrames,
		ChannelCount:         2,
		LatencyBudgetMs:      10,
		EQBandCount:          28,
		HRTFQuality:          spatial.QualityHigh.String(),
		THDNThresholdPercent: room.DefaultTHDNThreshold,
		PoolSize:             4,
		Alignment:            core.DefaultAlignment,

		FatalLatencyMultiplier: 2,
		BypassTrigger:          3,
		BypassRecovery:         16,

		Room: RoomConfig{
			Dimensions:      Dimensions{Width: 10, Length: 8, Height: 3},
			Absorption:      room.Uniform(0.3),
			ReflectionOrder: room.DefaultOrder,
			MaxBoostDB:      room.DefaultMaxBoostDB,
		},

		DistanceAttenuation: true,
		AirAbsorption:       true,
	}
}

// LoadConfig decodes YAML from r over DefaultConfig and validates the
// result. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// WriteYAML encodes cfg.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return err
	}

	return enc.Close()
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error

	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	if !core.ValidSampleRate(c.SampleRate) {
		bad("sample_rate %g outside [%d, %d]", c.SampleRate, core.MinSampleRate, core.MaxSampleRate)
	}

	switch c.BitDepth {
	case 16, 24, 32:
	default:
		bad("bit_depth %d not 16, 24 or 32", c.BitDepth)
	}

	if c.BufferSize < core.MinBufferFrames || c.BufferSize > core.MaxBufferFrames {
		bad("buffer_size %d outside [%d, %d]", c.BufferSize, core.MinBufferFrames, core.MaxBufferFrames)
	}

	if c.ChannelCount < 1 || c.ChannelCount > core.MaxChannels {
		bad("channel_count %d outside [1, %d]", c.ChannelCount, core.MaxChannels)
	}

	if !(c.LatencyBudgetMs > 0 && c.LatencyBudgetMs <= 100) {
		bad("latency_budget_ms %g outside (0, 100]", c.LatencyBudgetMs)
	}

	if c.EQBandCount < 1 || c.EQBandCount > 31 {
		bad("eq_band_count %d outside [1, 31]", c.EQBandCount)
	}

	if _, err := spatial.ParseQuality(c.HRTFQuality); err != nil {
		bad("hrtf_quality %q", c.HRTFQuality)
	}

	if !(c.THDNThresholdPercent > 0 && c.THDNThresholdPercent <= 1) {
		bad("thdn_threshold_percent %g outside (0, 1]", c.THDNThresholdPercent)
	}

	if c.PoolSize < 2 || c.PoolSize > 64 {
		bad("pool_size %d outside [2, 64]", c.PoolSize)
	}

	switch c.Alignment {
	case 16, 32, 64:
	default:
		bad("alignment %d not 16, 32 or 64", c.Alignment)
	}

	if !(c.FatalLatencyMultiplier >= 1 && c.FatalLatencyMultiplier <= 10) {
		bad("fatal_latency_multiplier %g outside [1, 10]", c.FatalLatencyMultiplier)
	}

	if c.BypassTrigger < 1 || c.BypassTrigger > 1000 {
		bad("bypass_trigger %d outside [1, 1000]", c.BypassTrigger)
	}

	if c.BypassRecovery < 1 || c.BypassRecovery > 1000 {
		bad("bypass_recovery %d outside [1, 1000]", c.BypassRecovery)
	}

	g := c.Room.Geometry()
	if err := g.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: room: %w", ErrConfiguration, err))
	}

	if c.Room.ReflectionOrder < 1 || c.Room.ReflectionOrder > room.MaxOrder {
		bad("room.reflection_order %d outside [1, %d]", c.Room.ReflectionOrder, room.MaxOrder)
	}

	if !(c.Room.MaxBoostDB >= 0 && c.Room.MaxBoostDB <= room.MaxBoostLimitDB) {
		bad("room.max_boost_db %g outside [0, %g]", c.Room.MaxBoostDB, room.MaxBoostLimitDB)
	}

	if c.Sources != nil && len(c.Sources) != c.ChannelCount {
		bad("%d sources for %d channels", len(c.Sources), c.ChannelCount)
	}

	for i, s := range c.Sources {
		if !s.IsFinite() || s.Norm() == 0 {
			bad("source %d at %v", i, s)
		}
	}

	if c.Listener != nil && (!c.Listener.IsFinite() || !g.Contains(*c.Listener)) {
		bad("listener %v outside the room", *c.Listener)
	}

	return errors.Join(errs...)
}

// ListenerPosition returns the configured listener or the room centre.
func (c Config) ListenerPosition() spatial.Vec3 {
	if c.Listener != nil {
		return *c.Listener
	}

	return c.Room.Geometry().Centre()
}

// SourcePositions returns the configured sources or the default layout:
// one source 2 m in front for mono, otherwise sources spread evenly over
// +/-30 degrees at 2 m.
func (c Config) SourcePositions() []spatial.Vec3 {
	if len(c.Sources) > 0 {
		return append([]spatial.Vec3(nil), c.Sources...)
	}

	out := make([]spatial.Vec3, c.ChannelCount)
	if c.ChannelCount == 1 {
		out[0] = spatial.FromSpherical(0, 0, 2)
		return out
	}

	for i := range out {
		az := -30 + 60*float64(i)/float64(c.ChannelCount-1)
		out[i] = spatial.FromSpherical(az, 0, 2)
	}

	return out
}

// Quality returns the parsed HRTF quality tier.
func (c Config) Quality() spatial.Quality {
	q, err := spatial.ParseQuality(c.HRTFQuality)
	if err != nil {
		return spatial.QualityHigh
	}

	return q
}

package pipeline

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/room"
	"github.com/cwbudde/algo-spatial/dsp/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 48000.0, cfg.SampleRate)
	assert.Equal(t, 512, cfg.BufferSize)
	assert.Equal(t, 28, cfg.EQBandCount)
	assert.Equal(t, spatial.QualityHigh, cfg.Quality())
	assert.Equal(t, 0.0005, cfg.THDNThresholdPercent)
	assert.Equal(t, room.Uniform(0.3), cfg.Room.Absorption)
	assert.Equal(t, spatial.Vec3{X: 5, Y: 4, Z: 1.5}, cfg.ListenerPosition())
}

func TestConfigRejectsEachField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate low", func(c *Config) { c.SampleRate = 22050 }},
		{"sample rate high", func(c *Config) { c.SampleRate = 400000 }},
		{"bit depth", func(c *Config) { c.BitDepth = 20 }},
		{"buffer small", func(c *Config) { c.BufferSize = 32 }},
		{"buffer large", func(c *Config) { c.BufferSize = 16384 }},
		{"channels", func(c *Config) { c.ChannelCount = 9 }},
		{"no channels", func(c *Config) { c.ChannelCount = 0 }},
		{"budget zero", func(c *Config) { c.LatencyBudgetMs = 0 }},
		{"budget large", func(c *Config) { c.LatencyBudgetMs = 101 }},
		{"eq bands", func(c *Config) { c.EQBandCount = 32 }},
		{"quality", func(c *Config) { c.HRTFQuality = "ultra" }},
		{"threshold", func(c *Config) { c.THDNThresholdPercent = 2 }},
		{"threshold nan", func(c *Config) { c.THDNThresholdPercent = math.NaN() }},
		{"pool", func(c *Config) { c.PoolSize = 1 }},
		{"alignment", func(c *Config) { c.Alignment = 8 }},
		{"fatal multiplier", func(c *Config) { c.FatalLatencyMultiplier = 0.5 }},
		{"bypass trigger", func(c *Config) { c.BypassTrigger = 0 }},
		{"bypass recovery", func(c *Config) { c.BypassRecovery = 1001 }},
		{"room size", func(c *Config) { c.Room.Dimensions.Height = 0.5 }},
		{"room absorption", func(c *Config) { c.Room.Absorption.Floor = 1 }},
		{"reflection order", func(c *Config) { c.Room.ReflectionOrder = 9 }},
		{"max boost", func(c *Config) { c.Room.MaxBoostDB = 13 }},
		{"source count", func(c *Config) { c.Sources = []spatial.Vec3{{Y: 1}} }},
		{"source at listener", func(c *Config) { c.Sources = []spatial.Vec3{{Y: 1}, {}} }},
		{"listener outside", func(c *Config) { c.Listener = &spatial.Vec3{X: 20, Y: 1, Z: 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConfigReportsAllViolations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BitDepth = 12
	cfg.PoolSize = 100
	cfg.HRTFQuality = "lofi"

	err := cfg.Validate()
	require.Error(t, err)

	for _, field := range []string{"bit_depth", "pool_size", "hrtf_quality"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoadConfig(t *testing.T) {
	const doc = `
sample_rate: 96000
buffer_size: 256
channel_count: 1
hrtf_quality: premium
parallel_sources: true
room:
  dimensions: {width: 6, length: 5, height: 2.7}
  reflection_order: 2
sources:
  - {x: 1, y: 1, z: 0}
listener: {x: 3, y: 2, z: 1.2}
`

	cfg, err := LoadConfig(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 96000.0, cfg.SampleRate)
	assert.Equal(t, 256, cfg.BufferSize)
	assert.Equal(t, spatial.QualityPremium, cfg.Quality())
	assert.True(t, cfg.ParallelSources)
	assert.Equal(t, Dimensions{Width: 6, Length: 5, Height: 2.7}, cfg.Room.Dimensions)
	assert.Equal(t, 2, cfg.Room.ReflectionOrder)
	assert.Equal(t, []spatial.Vec3{{X: 1, Y: 1}}, cfg.SourcePositions())
	assert.Equal(t, spatial.Vec3{X: 3, Y: 2, Z: 1.2}, cfg.ListenerPosition())

	// Untouched fields keep their defaults.
	assert.Equal(t, 24, cfg.BitDepth)
	assert.Equal(t, room.Uniform(0.3), cfg.Room.Absorption)
	assert.True(t, cfg.AirAbsorption)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("sample_rat: 48000\n"))
	assert.ErrorIs(t, err, ErrConfiguration, "unknown key")

	_, err = LoadConfig(strings.NewReader("buffer_size: [1, 2]\n"))
	assert.ErrorIs(t, err, ErrConfiguration, "wrong type")

	_, err = LoadConfig(strings.NewReader("buffer_size: 10\n"))
	assert.ErrorIs(t, err, core.ErrConfiguration, "out of range")

	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfigFile("does-not-exist.yaml")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HRTFQuality = "standard"
	cfg.Sources = []spatial.Vec3{{X: -1, Y: 2}, {X: 1, Y: 2}}
	cfg.Listener = &spatial.Vec3{X: 2, Y: 2, Z: 1}

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))

	got, err := LoadConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaultSourceLayout(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ChannelCount = 1
	mono := cfg.SourcePositions()
	require.Len(t, mono, 1)
	az, el, dist := mono[0].Spherical()
	assert.InDelta(t, 0, az, 1e-9)
	assert.InDelta(t, 0, el, 1e-9)
	assert.InDelta(t, 2, dist, 1e-12)

	cfg.ChannelCount = 2
	stereo := cfg.SourcePositions()
	require.Len(t, stereo, 2)

	azL, _, _ := stereo[0].Spherical()
	azR, _, _ := stereo[1].Spherical()
	assert.InDelta(t, -30, azL, 1e-9)
	assert.InDelta(t, 30, azR, 1e-9)
}

package core

// Stream limits accepted by the processing chain.
const (
	MinSampleRate     = 44100
	MaxSampleRate     = 384000
	DefaultSampleRate = 48000

	MinBufferFrames     = 64
	MaxBufferFrames     = 8192
	DefaultBufferFrames = 512

	MaxChannels = 8

	// DefaultAlignment is the byte alignment of pooled sample storage.
	DefaultAlignment = 32
	// CacheLineSize is the widest alignment the pool accepts.
	CacheLineSize = 64

	// SpeedOfSound in metres per second.
	SpeedOfSound = 343.0
)

// ValidSampleRate reports whether sr lies in the supported range.
func ValidSampleRate(sr float64) bool {
	return sr >= MinSampleRate && sr <= MaxSampleRate
}

package pcmio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sink encodes interleaved float64 samples as integer PCM.
type Sink interface {
	SampleRate() int
	Channels() int
	// WriteSamples clamps samples to [-1, 1] and appends them.
	WriteSamples(samples []float64) error
	Close() error
}

// encoder is the part of the go-audio encoders used here.
type encoder interface {
	Write(buf *audio.IntBuffer) error
	Close() error
}

type intSink struct {
	enc      encoder
	closer   io.Closer
	channels int
	rate     int
	scale    float64
	buf      *audio.IntBuffer
}

// Create opens path for writing and encodes WAV or AIFF according to the
// extension.
func Create(path string, sampleRate, bitDepth, channels int) (Sink, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	if format != FormatWAV && format != FormatAIFF {
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupported, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	sink, err := Encode(f, format, sampleRate, bitDepth, channels)
	if err != nil {
		f.Close()
		return nil, err
	}

	s := sink.(*intSink)
	s.closer = f

	return s, nil
}

// Encode writes format to w. The header is rewritten on Close, so w must
// support seeking.
func Encode(w io.WriteSeeker, format Format, sampleRate, bitDepth, channels int) (Sink, error) {
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}

	if sampleRate <= 0 || channels < 1 {
		return nil, fmt.Errorf("%w: %d Hz with %d channels", ErrUnsupported, sampleRate, channels)
	}

	var enc encoder

	switch format {
	case FormatWAV:
		enc = wav.NewEncoder(w, sampleRate, bitDepth, channels, 1)
	case FormatAIFF:
		enc = aiff.NewEncoder(w, sampleRate, bitDepth, channels)
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupported, format)
	}

	return &intSink{
		enc:      enc,
		channels: channels,
		rate:     sampleRate,
		scale:    scale,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (s *intSink) SampleRate() int { return s.rate }
func (s *intSink) Channels() int   { return s.channels }

func (s *intSink) WriteSamples(samples []float64) error {
	if len(samples)%s.channels != 0 {
		return fmt.Errorf("pcmio: %d samples for %d channels", len(samples), s.channels)
	}

	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}

	s.buf.Data = s.buf.Data[:len(samples)]

	hi := s.scale - 1
	for i, v := range samples {
		q := math.Round(v * s.scale)
		if math.IsNaN(q) {
			q = 0
		}

		s.buf.Data[i] = int(max(-s.scale, min(hi, q)))
	}

	return s.enc.Write(s.buf)
}

func (s *intSink) Close() error {
	err := s.enc.Close()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}

	return err
}

package main

import (
	"errors"
	"io"

	"github.com/cwbudde/algo-spatial/dsp/resample"
	"github.com/cwbudde/algo-spatial/internal/pcmio"
)

const resampleBlock = 1024

// resampled converts a source to another sample rate while it is read.
// The filter tail is flushed once the underlying source is exhausted.
type resampled struct {
	pcmio.Source

	conv    *resample.Converter
	in      []float64
	buf     []float64
	pending []float64
	done    bool
}

// withRate returns src unchanged when rate is zero or already matches,
// otherwise a source that delivers src at rate.
func withRate(src pcmio.Source, rate int) (pcmio.Source, error) {
	if rate == 0 || rate == src.SampleRate() {
		return src, nil
	}

	conv, err := resample.New(float64(src.SampleRate()), float64(rate), src.Channels(),
		resample.WithQuality(resample.QualityBest))
	if err != nil {
		return nil, err
	}

	ch := src.Channels()
	frames := conv.MaxOutputFrames(resampleBlock) + conv.MaxOutputFrames(conv.TapsPerPhase())

	return &resampled{
		Source: src,
		conv:   conv,
		in:     make([]float64, resampleBlock*ch),
		buf:    make([]float64, frames*ch),
	}, nil
}

func (r *resampled) SampleRate() int { return r.conv.OutputRate() }

func (r *resampled) ReadSamples(dst []float64) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}

		if err := r.refill(); err != nil {
			return 0, err
		}
	}

	n := copy(dst, r.pending)
	r.pending = r.pending[n:]

	return n, nil
}

func (r *resampled) refill() error {
	ch := r.conv.Channels()

	n, readErr := readFrames(r.Source, r.in)
	n -= n % ch

	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return readErr
	}

	frames, err := r.conv.Process(r.buf, r.in[:n])
	if err != nil {
		return err
	}

	if readErr != nil {
		tail, err := r.conv.Flush(r.buf[frames*ch:])
		if err != nil {
			return err
		}

		frames += tail
		r.done = true
	}

	r.pending = r.buf[:frames*ch]

	return nil
}

package buffer

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

// Layout describes how channels are arranged in a Buffer.
type Layout int

const (
	// LayoutPlanar stores each channel as its own aligned plane.
	LayoutPlanar Layout = iota
	// LayoutInterleaved stores frames as consecutive channel tuples.
	LayoutInterleaved
)

func (l Layout) String() string {
	switch l {
	case LayoutPlanar:
		return "planar"
	case LayoutInterleaved:
		return "interleaved"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Errors returned by buffer operations.
var (
	ErrShape     = errors.New("buffer: shape exceeds capacity")
	ErrMismatch  = errors.New("buffer: shape mismatch")
	ErrAlignment = fmt.Errorf("%w: buffer alignment must be a power of two in [16, 64]", core.ErrConfiguration)
)

// Buffer is a fixed-capacity block of aligned float64 samples tagged with
// a channel count, frame count and layout.
type Buffer struct {
	data      []float64
	channels  int
	frames    int
	stride    int
	layout    Layout
	alignment int
	pool      *Pool
}

// New allocates a standalone Buffer able to hold channels*frames samples in
// the given layout. alignment is in bytes.
func New(channels, frames int, layout Layout, alignment int) (*Buffer, error) {
	if err := validateShape(channels, frames, alignment); err != nil {
		return nil, err
	}

	b := &Buffer{
		channels:  channels,
		frames:    frames,
		layout:    layout,
		alignment: alignment,
	}
	b.stride = b.strideFor(frames)
	b.data = vector.MakeAligned(b.footprint(channels, frames), alignment)

	return b, nil
}

func validateShape(channels, frames, alignment int) error {
	if channels < 1 || channels > core.MaxChannels {
		return fmt.Errorf("%w: channels %d out of [1, %d]", core.ErrConfiguration, channels, core.MaxChannels)
	}
	if frames < 1 {
		return fmt.Errorf("%w: frames %d must be positive", core.ErrConfiguration, frames)
	}
	if alignment < vector.Alignment || alignment > core.CacheLineSize || alignment&(alignment-1) != 0 {
		return ErrAlignment
	}
	return nil
}

// strideFor returns the plane stride in samples for the given frame count.
func (b *Buffer) strideFor(frames int) int {
	if b.layout == LayoutInterleaved {
		return frames
	}
	lane := b.alignment / 8
	return (frames + lane - 1) / lane * lane
}

func (b *Buffer) footprint(channels, frames int) int {
	if b.layout == LayoutInterleaved {
		return channels * frames
	}
	return channels * b.strideFor(frames)
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return b.channels }

// Frames returns the number of frames per channel.
func (b *Buffer) Frames() int { return b.frames }

// Len returns channels*frames.
func (b *Buffer) Len() int { return b.channels * b.frames }

// Cap returns the number of samples the backing storage holds.
func (b *Buffer) Cap() int { return len(b.data) }

// Layout returns the channel layout.
func (b *Buffer) Layout() Layout { return b.layout }

// Alignment returns the storage alignment in bytes.
func (b *Buffer) Alignment() int { return b.alignment }

// Samples returns the active region of the backing storage. For interleaved
// buffers this is the frame data; for planar buffers it includes any padding
// between planes.
func (b *Buffer) Samples() []float64 {
	if b.layout == LayoutInterleaved {
		return b.data[:b.channels*b.frames]
	}
	return b.data[:b.channels*b.stride]
}

// Channel returns the plane for channel c of a planar buffer. It panics for
// interleaved buffers with more than one channel.
func (b *Buffer) Channel(c int) []float64 {
	if b.layout == LayoutInterleaved && b.channels > 1 {
		panic("buffer: Channel on interleaved multichannel buffer")
	}
	if c < 0 || c >= b.channels {
		panic("buffer: channel index out of range")
	}
	off := c * b.stride
	return b.data[off : off+b.frames : off+b.frames]
}

// Aligned reports whether every channel plane starts on an address aligned
// to the buffer's alignment.
func (b *Buffer) Aligned() bool {
	if b.layout == LayoutInterleaved {
		return vector.IsAligned(b.data, b.alignment)
	}
	for c := 0; c < b.channels; c++ {
		if !vector.IsAligned(b.data[c*b.stride:], b.alignment) {
			return false
		}
	}
	return true
}

// Reshape re-tags the buffer with a new channel and frame count. The
// contents are not preserved. It fails with ErrShape if the shape does not
// fit into the existing storage.
func (b *Buffer) Reshape(channels, frames int) error {
	if channels < 1 || frames < 1 {
		return fmt.Errorf("%w: %dx%d", ErrShape, channels, frames)
	}
	if b.footprint(channels, frames) > len(b.data) {
		return fmt.Errorf("%w: %dx%d needs %d samples, have %d",
			ErrShape, channels, frames, b.footprint(channels, frames), len(b.data))
	}

	b.channels = channels
	b.frames = frames
	b.stride = b.strideFor(frames)
	return nil
}

// Zero clears the whole backing storage.
func (b *Buffer) Zero() {
	clear(b.data)
}

// CopyFrom copies src into b, converting layouts if needed. Both buffers
// must have the same channel and frame count.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.channels != b.channels || src.frames != b.frames {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrMismatch,
			src.channels, src.frames, b.channels, b.frames)
	}

	switch {
	case src.layout == LayoutInterleaved:
		return b.Deinterleave(src.Samples())
	case b.layout == LayoutInterleaved:
		return src.Interleave(b.Samples())
	default:
		for c := 0; c < b.channels; c++ {
			copy(b.Channel(c), src.Channel(c))
		}
		return nil
	}
}

// Deinterleave fills b from interleaved frames. len(src) must equal Len().
func (b *Buffer) Deinterleave(src []float64) error {
	if len(src) != b.Len() {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrMismatch, len(src), b.channels, b.frames)
	}
	if b.layout == LayoutInterleaved || b.channels == 1 {
		copy(b.data, src)
		return nil
	}

	for c := 0; c < b.channels; c++ {
		plane := b.Channel(c)
		for i := range plane {
			plane[i] = src[i*b.channels+c]
		}
	}
	return nil
}

// Interleave writes b as interleaved frames into dst. len(dst) must equal
// Len().
func (b *Buffer) Interleave(dst []float64) error {
	if len(dst) != b.Len() {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrMismatch, len(dst), b.channels, b.frames)
	}
	if b.layout == LayoutInterleaved || b.channels == 1 {
		copy(dst, b.data[:len(dst)])
		return nil
	}

	for c := 0; c < b.channels; c++ {
		plane := b.Channel(c)
		for i, v := range plane {
			dst[i*b.channels+c] = v
		}
	}
	return nil
}

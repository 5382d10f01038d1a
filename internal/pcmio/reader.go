package pcmio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Source is a decoded audio stream.
type Source interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples in [-1, 1] and returns
	// how many were written. It returns io.EOF once the stream is
	// exhausted, possibly together with the last samples.
	ReadSamples(dst []float64) (int, error)
	Close() error
}

// Open decodes the file at path, choosing the decoder from the extension
// and falling back to the file signature.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	format, err := FormatFromPath(path)
	if err != nil {
		var header [12]byte

		n, _ := io.ReadFull(f, header[:])
		if format = Sniff(header[:n]); format == FormatUnknown {
			f.Close()
			return nil, err
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}

	src, err := Decode(f, format)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &fileSource{Source: src, file: f}, nil
}

// Decode wraps r in the decoder for format. The caller keeps ownership of
// r; closing the Source does not close it.
func Decode(r io.ReadSeeker, format Format) (Source, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r)
	case FormatAIFF:
		return decodeAIFF(r)
	case FormatMP3:
		return decodeMP3(r)
	case FormatVorbis:
		return decodeVorbis(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

type fileSource struct {
	Source
	file *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.file.Close())
}

// pcmDecoder is the part of the go-audio decoders used here.
type pcmDecoder interface {
	PCMBuffer(buf *audio.IntBuffer) (int, error)
}

// intSource adapts a go-audio integer PCM decoder.
type intSource struct {
	dec        pcmDecoder
	sampleRate int
	channels   int
	scale      float64
	buf        *audio.IntBuffer
	done       bool
}

func newIntSource(dec pcmDecoder, format *audio.Format, bitDepth int) (*intSource, error) {
	if format == nil || format.NumChannels < 1 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format information", ErrInvalidFile)
	}

	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}

	return &intSource{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		scale:      scale,
		buf:        &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
	}, nil
}

func (s *intSource) SampleRate() int { return s.sampleRate }
func (s *intSource) Channels() int   { return s.channels }
func (s *intSource) Close() error    { return nil }

func (s *intSource) ReadSamples(dst []float64) (int, error) {
	if s.done {
		return 0, io.EOF
	}

	if len(dst) == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}

	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i, v := range s.buf.Data[:n] {
		dst[i] = float64(v) / s.scale
	}

	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return n, err
	case err != nil || n < len(dst):
		s.done = true
		return n, io.EOF
	default:
		return n, nil
	}
}

func decodeWAV(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}

	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: WAV audio format %d, want integer PCM", ErrUnsupported, dec.WavAudioFormat)
	}

	return newIntSource(dec, dec.Format(), int(dec.BitDepth))
}

func decodeAIFF(r io.ReadSeeker) (Source, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrInvalidFile)
	}

	dec.ReadInfo()

	return newIntSource(dec, dec.Format(), int(dec.BitDepth))
}

// mp3Source adapts go-mp3, which always produces 16-bit little-endian
// stereo.
type mp3Source struct {
	dec        *gomp3.Decoder
	sampleRate int
	buf        []byte
}

func decodeMP3(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return &mp3Source{dec: dec, sampleRate: dec.SampleRate()}, nil
}

func (s *mp3Source) SampleRate() int { return s.sampleRate }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float64) (int, error) {
	if need := 2 * len(dst); cap(s.buf) < need {
		s.buf = make([]byte, need)
	}

	s.buf = s.buf[:2*len(dst)]

	n, err := io.ReadFull(s.dec, s.buf)
	samples := n / 2

	for i := range samples {
		dst[i] = float64(int16(uint16(s.buf[2*i])|uint16(s.buf[2*i+1])<<8)) / 32768
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	return samples, err
}

// vorbisSource adapts oggvorbis, which decodes to interleaved float32.
type vorbisSource struct {
	dec *oggvorbis.Reader
	buf []float32
}

func decodeVorbis(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return &vorbisSource{dec: dec}, nil
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.dec.Channels() }
func (s *vorbisSource) Close() error    { return nil }

func (s *vorbisSource) ReadSamples(dst []float64) (int, error) {
	want := len(dst) - len(dst)%s.dec.Channels()
	if cap(s.buf) < want {
		s.buf = make([]float32, want)
	}

	s.buf = s.buf[:want]

	n, err := s.dec.Read(s.buf)
	for i, v := range s.buf[:n] {
		dst[i] = float64(v)
	}

	return n, err
}

// ReadAll drains src into one interleaved slice.
func ReadAll(src Source) ([]float64, error) {
	var out []float64

	chunk := make([]float64, 4096*src.Channels())

	for {
		n, err := src.ReadSamples(chunk)
		out = append(out, chunk[:n]...)

		switch {
		case errors.Is(err, io.EOF):
			return out, nil
		case err != nil:
			return out, err
		case n == 0:
			return out, nil
		}
	}
}

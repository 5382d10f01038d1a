package pcmio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported reports a file type or sample format that cannot be
	// handled.
	ErrUnsupported = errors.New("pcmio: unsupported format")
	// ErrInvalidFile reports a stream that does not parse as its format.
	ErrInvalidFile = errors.New("pcmio: invalid file")
)

// Format identifies a container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatAIFF
	FormatMP3
	FormatVorbis
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatAIFF:
		return "aiff"
	case FormatMP3:
		return "mp3"
	case FormatVorbis:
		return "vorbis"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".aif", ".aiff":
		return FormatAIFF, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatVorbis, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: extension %q", ErrUnsupported, ext)
	}
}

// Sniff identifies the format from the first bytes of a file. It returns
// FormatUnknown when no signature matches.
func Sniff(header []byte) Format {
	switch {
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV
	case len(header) >= 12 && string(header[:4]) == "FORM" &&
		(string(header[8:12]) == "AIFF" || string(header[8:12]) == "AIFC"):
		return FormatAIFF
	case len(header) >= 4 && string(header[:4]) == "OggS":
		return FormatVorbis
	case len(header) >= 3 && string(header[:3]) == "ID3":
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// fullScale returns the magnitude of the most negative integer sample at
// the given bit depth.
func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float64(int64(1) << (bitDepth - 1)), nil
	default:
		return 0, fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, bitDepth)
	}
}

package decoder

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// Format identifies a container/codec pair the decoder understands.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatFLAC
	FormatMP3
	FormatVorbis
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatFLAC:
		return "flac"
	case FormatMP3:
		return "mp3"
	case FormatVorbis:
		return "vorbis"
	default:
		return "unknown"
	}
}

var extensionFormats = map[string]Format{
	"wav":  FormatWAV,
	"wave": FormatWAV,
	"flac": FormatFLAC,
	"mp3":  FormatMP3,
	"ogg":  FormatVorbis,
	"oga":  FormatVorbis,
}

// SupportedExtensions lists the lowercase file extensions Open accepts.
func SupportedExtensions() []string {
	return []string{"wav", "flac", "mp3", "ogg"}
}

// Probe sniffs the first bytes of r and falls back to the extension of path.
// The reader is rewound to the start before returning.
func Probe(r io.ReadSeeker, path string) (Format, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}
	header = header[:n]

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatVorbis, nil
	case bytes.HasPrefix(header, []byte("ID3")):
		// ID3 tags are also found in front of FLAC streams.
		if ext == "flac" {
			return FormatFLAC, nil
		}
		return FormatMP3, nil
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	if f, ok := extensionFormats[ext]; ok && len(header) > 0 {
		return f, nil
	}
	return FormatUnknown, nil
}

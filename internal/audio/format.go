package audio

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Format names an audio container.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatFLAC    Format = "flac"
	FormatM4A     Format = "m4a"
	FormatUnknown Format = "unknown"
)

// ContentType returns the MIME type used when storing or serving the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOGG:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	case FormatM4A:
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatUnknown || f == "" {
		return ""
	}
	return "." + string(f)
}

// ParseFormat maps a user supplied name ("mp3", ".wav", "MP3") to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "wav", "wave":
		return FormatWAV
	case "mp3", "mpeg":
		return FormatMP3
	case "ogg", "opus":
		return FormatOGG
	case "flac":
		return FormatFLAC
	case "m4a", "mp4", "aac":
		return FormatM4A
	default:
		return FormatUnknown
	}
}

// FormatFromPath derives the container from a file name's extension.
func FormatFromPath(path string) Format {
	return ParseFormat(filepath.Ext(path))
}

// DetectFormat identifies the container of data. Content wins over the name:
// RIFF/WAVE headers are checked first, then tag.Identify for tagged
// containers, then a bare MPEG frame sync. The name's extension is the last
// resort.
func DetectFormat(data []byte, name string) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}

	if len(data) >= 11 {
		if _, fileType, err := tag.Identify(bytes.NewReader(data)); err == nil {
			switch fileType {
			case tag.MP3:
				return FormatMP3
			case tag.OGG:
				return FormatOGG
			case tag.FLAC:
				return FormatFLAC
			case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
				return FormatM4A
			}
		}
	}

	if isMPEGFrameSync(data) {
		return FormatMP3
	}

	if name != "" {
		return FormatFromPath(name)
	}
	return FormatUnknown
}

// isMPEGFrameSync reports whether data starts with an MPEG audio frame
// header: 11 sync bits, a valid version and layer III.
func isMPEGFrameSync(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}
	version := (data[1] >> 3) & 0x03
	layer := (data[1] >> 1) & 0x03
	return version != 0x01 && layer == 0x01
}

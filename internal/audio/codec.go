package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Decode turns encoded audio into a Buffer. An empty format is detected from
// the data. WAV and MP3 are decoded in-process; other containers go through
// FFmpeg.
func Decode(ctx context.Context, data []byte, format Format) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: format, Err: ErrEmptyFile}
	}
	if format == "" || format == FormatUnknown {
		format = DetectFormat(data, "")
	}

	switch format {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return DecodeMP3(data)
	case FormatOGG, FormatFLAC, FormatM4A:
		return decodeWithFFmpeg(ctx, data, format)
	default:
		return nil, &DecodeError{Format: format, Err: ErrUnsupportedFormat}
	}
}

// Encode serializes buf into the requested container.
func Encode(ctx context.Context, buf *Buffer, format Format) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}

	switch format {
	case FormatWAV:
		return encodeWAVBytes(buf)
	case FormatMP3:
		return encodeMP3(ctx, buf)
	default:
		return nil, &EncodeError{Format: format, Err: ErrUnsupportedFormat}
	}
}

// ReadFile loads and decodes an audio file.
func ReadFile(ctx context.Context, path string) (*Buffer, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FormatUnknown, &DecodeError{Format: FormatFromPath(path), Err: err}
	}
	format := DetectFormat(data, path)
	buf, err := Decode(ctx, data, format)
	if err != nil {
		return nil, format, err
	}
	return buf, format, nil
}

// WriteFile encodes buf in the format implied by path and writes it
// atomically. The written file is verified before returning.
func WriteFile(ctx context.Context, path string, buf *Buffer) (int64, error) {
	format := FormatFromPath(path)
	if format == FormatUnknown {
		format = FormatWAV
	}
	data, err := Encode(ctx, buf, format)
	if err != nil {
		return 0, err
	}
	if err := WriteBytes(path, data); err != nil {
		return 0, &EncodeError{Format: format, Err: err}
	}
	return VerifyFile(path)
}

// WriteBytes writes data to path through a temp file in the same directory
// and renames it into place.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// VerifyFile checks that path exists, is a regular file and is non-empty.
// It returns the file size.
func VerifyFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("output file not created: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("output %s is not a regular file", path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return info.Size(), nil
}

// encodeWAVBytes needs a seekable sink for the header patch, so it goes
// through a temp file.
func encodeWAVBytes(buf *Buffer) ([]byte, error) {
	f, err := os.CreateTemp("", "voicekit-*.wav")
	if err != nil {
		return nil, &EncodeError{Format: FormatWAV, Err: err}
	}
	defer os.Remove(f.Name())

	if err := EncodeWAV(f, buf); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, &EncodeError{Format: FormatWAV, Err: err}
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		return nil, &EncodeError{Format: FormatWAV, Err: err}
	}
	return data, nil
}

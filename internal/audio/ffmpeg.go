package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	AudioBitrate = "192k"
	AudioCodec   = "libmp3lame"
	AudioQuality = "0" // LAME quality (0 = best)
	WAVCodec     = "pcm_s16le"
)

// FFmpegBinary is the executable used for container conversion.
var FFmpegBinary = "ffmpeg"

// FFmpegAvailable reports whether the ffmpeg binary can be found.
func FFmpegAvailable() bool {
	_, err := exec.LookPath(FFmpegBinary)
	return err == nil
}

// ConvertToMP3 encodes any FFmpeg-readable input file as MP3. The sample
// rate and channel layout of the input are kept.
func ConvertToMP3(ctx context.Context, input, output string) error {
	return runFFmpeg(ctx, "mp3",
		"-i", input,
		"-vn",
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-y",
		output,
	)
}

// ConvertToWAV decodes any FFmpeg-readable input file to 16-bit PCM WAV.
func ConvertToWAV(ctx context.Context, input, output string) error {
	return runFFmpeg(ctx, "wav",
		"-i", input,
		"-vn",
		"-c:a", WAVCodec,
		"-y",
		output,
	)
}

func runFFmpeg(ctx context.Context, target string, args ...string) error {
	if !FFmpegAvailable() {
		return ErrFFmpegMissing
	}

	cmd := exec.CommandContext(ctx, FFmpegBinary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion (→ %s) failed: %w\n%s", target, err, stderr.String())
	}

	output := args[len(args)-1]
	if _, err := VerifyFile(output); err != nil {
		return fmt.Errorf("ffmpeg output: %w", err)
	}
	return nil
}

// decodeWithFFmpeg converts data of any container to WAV in a temp dir and
// decodes the result.
func decodeWithFFmpeg(ctx context.Context, data []byte, format Format) (*Buffer, error) {
	tmpDir, err := os.MkdirTemp("", "voicekit-decode-*")
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input"+format.Ext())
	if err := os.WriteFile(in, data, 0o644); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	out := filepath.Join(tmpDir, "decoded.wav")
	if err := ConvertToWAV(ctx, in, out); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	wavData, err := os.ReadFile(out)
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	buf, err := DecodeWAV(wavData)
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	return buf, nil
}

// encodeMP3 writes buf as WAV into a temp dir and lets FFmpeg produce MP3.
func encodeMP3(ctx context.Context, buf *Buffer) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "voicekit-encode-*")
	if err != nil {
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "pcm.wav")
	f, err := os.Create(in)
	if err != nil {
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}
	if err := EncodeWAV(f, buf); err != nil {
		f.Close()
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}

	out := filepath.Join(tmpDir, "encoded.mp3")
	if err := ConvertToMP3(ctx, in, out); err != nil {
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, &EncodeError{Format: FormatMP3, Err: err}
	}
	return data, nil
}

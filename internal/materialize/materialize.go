// Package materialize turns timeline segments into normalized local media
// files: real chunks are re-encoded to the reference profile, gaps are
// synthesized as black video with optional silent audio.
package materialize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/maauso/video-merger/internal/probe"
)

// Timeout is the wall-clock deadline for a single chunk normalization or
// gap synthesis, per spec §4.5.
const Timeout = 5 * time.Minute

// Materializer shells out to ffmpeg to produce normalized segment files.
// The zero value uses "ffmpeg" from PATH.
type Materializer struct {
	ffmpegPath string
}

// New creates a Materializer. If ffmpegPath is empty it defaults to
// "ffmpeg".
func New(ffmpegPath string) *Materializer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Materializer{ffmpegPath: ffmpegPath}
}

// videoEncoderFor maps a probed codec name to the ffmpeg encoder that
// produces it. Unknown codecs fall back to libx264, the widely-compatible
// default.
func videoEncoderFor(codecName string) string {
	switch codecName {
	case "h264":
		return "libx264"
	case "hevc", "h265":
		return "libx265"
	case "vp9":
		return "libvpx-vp9"
	case "vp8":
		return "libvpx"
	default:
		return "libx264"
	}
}

// audioEncoderFor maps a probed audio codec name to the ffmpeg encoder
// that produces it. Unknown codecs fall back to aac.
func audioEncoderFor(codecName string) string {
	switch codecName {
	case "aac":
		return "aac"
	case "mp3":
		return "libmp3lame"
	case "opus":
		return "libopus"
	case "vorbis":
		return "libvorbis"
	default:
		return "aac"
	}
}

func channelLayout(count int) string {
	if count == 1 {
		return "mono"
	}
	return "stereo"
}

// NormalizeChunk re-encodes a real chunk to exactly match the reference
// profile: video to the profile's codec at its dimensions and nearest-
// integer frame rate with a widely-compatible pixel layout, audio to the
// profile's codec/sample-rate/channel-count if the profile has audio
// (dropped otherwise). This uniformity is what makes the downstream
// stream-copy concat legal.
func (m *Materializer) NormalizeChunk(ctx context.Context, src, dst string, p probe.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	fps := int(p.FrameRate + 0.5)
	if fps <= 0 {
		fps = 30
	}

	filter := fmt.Sprintf("scale=%d:%d,fps=%d,format=yuv420p", p.Width, p.Height, fps)

	args := []string{
		"-y",
		"-i", src,
		"-vf", filter,
		"-c:v", videoEncoderFor(p.VideoCodecName),
		"-pix_fmt", "yuv420p",
	}

	if p.HasAudio {
		args = append(args,
			"-c:a", audioEncoderFor(p.AudioCodecName),
			"-ar", fmt.Sprintf("%d", p.AudioSampleRate),
			"-ac", fmt.Sprintf("%d", p.AudioChannelCount),
		)
	} else {
		args = append(args, "-an")
	}

	args = append(args, dst)

	return m.run(ctx, args)
}

// SynthesizeGap produces a black video of the requested duration at the
// profile's dimensions and frame rate, with a silent audio track matching
// the profile's sample rate and channel count when the profile has audio.
func (m *Materializer) SynthesizeGap(ctx context.Context, dst string, durationSeconds float64, p probe.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	fps := int(p.FrameRate + 0.5)
	if fps <= 0 {
		fps = 30
	}

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d:d=%.3f", p.Width, p.Height, fps, durationSeconds),
	}

	if p.HasAudio {
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=r=%d:cl=%s:d=%.3f", p.AudioSampleRate, channelLayout(p.AudioChannelCount), durationSeconds),
		)
	}

	args = append(args,
		"-c:v", videoEncoderFor(p.VideoCodecName),
		"-pix_fmt", "yuv420p",
		"-t", fmt.Sprintf("%.3f", durationSeconds),
	)

	if p.HasAudio {
		args = append(args,
			"-c:a", audioEncoderFor(p.AudioCodecName),
			"-ar", fmt.Sprintf("%d", p.AudioSampleRate),
			"-ac", fmt.Sprintf("%d", p.AudioChannelCount),
			"-shortest",
		)
	}

	args = append(args, dst)

	return m.run(ctx, args)
}

func (m *Materializer) run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is configured by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("materialize: ffmpeg deadline exceeded: %w", ctx.Err())
		}
		return &Error{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Error wraps a failed ffmpeg invocation with its stderr output.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("materialize: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *Error) Unwrap() error {
	return e.Err
}

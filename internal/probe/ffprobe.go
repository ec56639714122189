// Package probe inspects local media files with ffprobe to recover
// duration and the codec/resolution/frame-rate profile the merge pipeline
// normalizes every chunk to.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoDuration is returned when a container reports no duration.
var ErrNoDuration = errors.New("probe: container reports no duration")

// ErrNoVideoTrack is returned when a file has no video stream to probe a
// profile from.
var ErrNoVideoTrack = errors.New("probe: no video track found")

// Profile is the reference codec/resolution/frame-rate/audio profile
// recovered from a file's first video track and, if present, first audio
// track.
type Profile struct {
	Width             int
	Height            int
	FrameRate         float64
	VideoCodecName    string
	HasAudio          bool
	AudioCodecName    string
	AudioSampleRate   int
	AudioChannelCount int
}

// Prober shells out to ffprobe. The zero value uses "ffprobe" from PATH.
type Prober struct {
	ffprobePath string
}

// New creates a Prober. If ffprobePath is empty it defaults to "ffprobe".
func New(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// probeStream mirrors the subset of ffprobe's JSON stream object the
// profile and duration probes need.
type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

func (p *Prober) run(ctx context.Context, path string) (*probeResult, error) {
	// #nosec G204 - path is a locally downloaded/produced file, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Path: path, Stderr: stderr.String(), Err: err}
	}

	var result probeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("probe: parse ffprobe output for %q: %w", path, err)
	}
	return &result, nil
}

// Duration returns the positive floating-point duration, in seconds, of the
// media file at path.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	result, err := p.run(ctx, path)
	if err != nil {
		return 0, err
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, path)
	}
	return d, nil
}

// Profile inspects the first video track and the first audio track (if
// any) of the file at path.
func (p *Prober) Profile(ctx context.Context, path string) (Profile, error) {
	result, err := p.run(ctx, path)
	if err != nil {
		return Profile{}, err
	}

	var (
		profile  Profile
		videoSet bool
		audioSet bool
	)

	for _, s := range result.Streams {
		switch {
		case s.CodecType == "video" && !videoSet:
			profile.Width = s.Width
			profile.Height = s.Height
			profile.VideoCodecName = s.CodecName
			profile.FrameRate = parseFrameRate(s.RFrameRate)
			videoSet = true
		case s.CodecType == "audio" && !audioSet:
			profile.HasAudio = true
			profile.AudioCodecName = s.CodecName
			profile.AudioSampleRate = parseInt(s.SampleRate)
			profile.AudioChannelCount = s.Channels
			audioSet = true
		}
	}

	if !videoSet {
		return Profile{}, fmt.Errorf("%w: %q", ErrNoVideoTrack, path)
	}

	if profile.Width <= 0 || profile.Height <= 0 {
		profile.Width, profile.Height = 1920, 1080
	}
	if profile.VideoCodecName == "" {
		profile.VideoCodecName = "h264"
	}

	return profile, nil
}

func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return 30
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d <= 0 {
		return 30
	}
	return n / d
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

// Error wraps a failed ffprobe invocation with its stderr output.
type Error struct {
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe: ffprobe failed for %q: %v: %s", e.Path, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error {
	return e.Err
}

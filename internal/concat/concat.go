// Package concat drives the final stream-copy concatenation of
// materialized segment files into a single playable output.
package concat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Timeout is the wall-clock deadline for the final concat step, per spec
// §4.6.
const Timeout = 30 * time.Minute

// ErrNoInputs is returned when Concat is called with no input files.
var ErrNoInputs = errors.New("concat: no input files")

// Engine shells out to ffmpeg's concat demuxer in stream-copy mode. The
// zero value uses "ffmpeg" from PATH.
type Engine struct {
	ffmpegPath string
}

// New creates an Engine. If ffmpegPath is empty it defaults to "ffmpeg".
func New(ffmpegPath string) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Engine{ffmpegPath: ffmpegPath}
}

// Concat writes a concat manifest listing inputs in timeline order to
// manifestPath, then drives ffmpeg's concat demuxer with stream copy and
// moov-atom-at-start relocation into output. Inputs must already share
// identical codec parameters (see the materialize package); this engine
// does not re-encode as a fallback, since that would mask a normalization
// defect instead of surfacing it.
func (e *Engine) Concat(ctx context.Context, inputs []string, manifestPath, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	if err := writeManifest(manifestPath, inputs); err != nil {
		return fmt.Errorf("concat: write manifest: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}

	// #nosec G204 - ffmpegPath is configured by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("concat: ffmpeg deadline exceeded: %w", ctx.Err())
		}
		return &Error{Args: args, Stderr: stderr.String(), Err: err}
	}

	return nil
}

func writeManifest(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve absolute path for %q: %w", in, err)
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// Error wraps a failed ffmpeg concat invocation with its stderr output.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("concat: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *Error) Unwrap() error {
	return e.Err
}

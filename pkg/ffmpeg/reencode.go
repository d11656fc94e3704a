// Package ffmpeg runs the external ffmpeg binary to re-encode a rendered
// video into a browser-compatible H.264/AAC file.
package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"platecam/errors"
)

// logger is installed by the main package via SetLogger
var logger = slog.Default()

// SetLogger allows main package to provide the structured logger
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Reencoder re-encodes a file in place through a temporary sibling file
type Reencoder struct {
	FFmpegPath   string
	VideoCodec   string
	AudioCodec   string
	StallTimeout time.Duration // 0 disables stall detection
	BufferLines  int           // output lines kept for the failure dump
}

// NewReencoder creates a reencoder with libx264/aac and a 30s stall timeout
func NewReencoder(ffmpegPath string) *Reencoder {
	return &Reencoder{
		FFmpegPath:   ffmpegPath,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		StallTimeout: 30 * time.Second,
		BufferLines:  100,
	}
}

// Args returns the ffmpeg command line, without the binary, for in -> out
func (r *Reencoder) Args(in, out string) []string {
	return []string{"-y", "-i", in, "-vcodec", r.VideoCodec, "-acodec", r.AudioCodec, "-strict", "-2", out}
}

// Reencode replaces path with its re-encoded version. On any failure path
// is left untouched and the temporary file is removed.
func (r *Reencoder) Reencode(ctx context.Context, path string) error {
	tmp := tempPath(path)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cmd := exec.CommandContext(ctx, r.FFmpegPath, r.Args(path, tmp)...)
	cmd.WaitDelay = time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create ffmpeg stderr pipe"), errors.ErrIO)
	}

	logger.Info("Re-encoding", "input", path, "ffmpeg", r.FFmpegPath, "vcodec", r.VideoCodec, "acodec", r.AudioCodec)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return errors.WithHint(
			errors.Mark(errors.Wrapf(err, "start %s", r.FFmpegPath), errors.ErrIO),
			"install ffmpeg or set reencode.ffmpeg_path")
	}

	mon := newMonitor(r.BufferLines)
	done := make(chan struct{})
	go func() {
		mon.consume(stderr)
		close(done)
	}()
	if r.StallTimeout > 0 {
		go mon.watch(ctx, r.StallTimeout, cancel)
	}

	<-done
	waitErr := cmd.Wait()

	if waitErr != nil {
		removeTemp(tmp)
		mon.dump()
		if cause := context.Cause(ctx); cause != nil {
			waitErr = errors.Wrapf(cause, "%s", waitErr.Error())
		}
		return errors.Mark(errors.Wrapf(waitErr, "re-encode %s", path), errors.ErrIO)
	}

	if err := os.Rename(tmp, path); err != nil {
		removeTemp(tmp)
		return errors.Mark(errors.Wrapf(err, "replace %s", path), errors.ErrIO)
	}

	logger.Info("Re-encode complete", "output", path, "frames", mon.frame(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// tempPath keeps the extension so ffmpeg picks the same container
func tempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".reencode" + ext
}

func removeTemp(tmp string) {
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove temporary file", "path", tmp, "error", err)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"platecam/detection"
	"platecam/errors"
	"platecam/pipeline"
	"platecam/pkg/ffmpeg"
	"platecam/tracking"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render plate overlays onto a video",
	Long: `Render reads the source video frame by frame, draws the overlay for every
car the dataset places on that frame and writes an output video with the same
resolution, frame rate and frame count.

Rows that cannot be drawn (bad boxes, plates outside the frame) are logged
and skipped; only failures to open, read or write the videos are fatal.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().String("video", "", "source video")
	renderCmd.Flags().String("dataset", "", "interpolated detection CSV (default test_interpolated.csv)")
	renderCmd.Flags().String("output", "", "output video (default out.mp4)")
	renderCmd.Flags().String("codec", "", "fourcc of the output encoder (default mp4v)")
	renderCmd.Flags().Bool("wait", false, "wait for the dataset file to appear")
	renderCmd.Flags().Duration("wait-timeout", 0, "give up waiting after this long (0 waits forever)")
	renderCmd.Flags().Bool("reencode", false, "re-encode the output with ffmpeg for browser playback")
	renderCmd.Flags().String("ffmpeg", "", "ffmpeg binary used by --reencode (default ffmpeg)")
}

func runRender(cmd *cobra.Command, args []string) error {
	if cfg.Video.Input == "" {
		return errors.WithHint(errors.New("no source video"), "pass --video or set video.input")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Dataset.Wait {
		if err := waitForDataset(ctx, cfg.Dataset.Path, cfg.Dataset.WaitTimeout); err != nil {
			return err
		}
	}

	ds, err := detection.LoadDataset(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	registry := tracking.BuildRegistry(ds.Records)
	logger.Info("Tracks resolved", "tracks", registry.Len())

	style, err := cfg.Overlay.Style()
	if err != nil {
		return err
	}

	driver := pipeline.NewDriver(pipeline.Options{
		Input:  cfg.Video.Input,
		Output: cfg.Video.Output,
		Codec:  cfg.Video.Codec,
		Style:  style,
	}, detection.NewFrameIndex(ds.Records), registry)

	if _, err := driver.Run(); err != nil {
		return err
	}

	if cfg.Reencode.Enabled {
		r := ffmpeg.NewReencoder(cfg.Reencode.FFmpegPath)
		r.VideoCodec = cfg.Reencode.VideoCodec
		r.AudioCodec = cfg.Reencode.AudioCodec
		if err := r.Reencode(ctx, cfg.Video.Output); err != nil {
			return err
		}
	}
	return nil
}

func waitForDataset(ctx context.Context, path string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return detection.WaitForDataset(ctx, path)
}

// platecam renders license plate overlays onto a traffic video, using the
// interpolated detection dataset produced by the earlier tracking stages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"platecam/config"
	"platecam/detection"
	"platecam/errors"
	"platecam/overlay"
	"platecam/pipeline"
	"platecam/pkg/ffmpeg"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	cfg        *config.Config
	logger     = slog.Default()
)

// flagKeys maps command-line flags to the config keys they override
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"no-color":     "log.no_color",
	"video":        "video.input",
	"output":       "video.output",
	"codec":        "video.codec",
	"dataset":      "dataset.path",
	"wait":         "dataset.wait",
	"wait-timeout": "dataset.wait_timeout",
	"reencode":     "reencode.enabled",
	"ffmpeg":       "reencode.ffmpeg_path",
}

var rootCmd = &cobra.Command{
	Use:   "platecam",
	Short: "Render license plate overlays onto traffic video",
	Long: `platecam draws, for every tracked car in every frame, a corner border
around the car, a box around its plate, an enlarged plate thumbnail above the
car and the car's canonical plate text.

Examples:
  platecam render --video sample.mp4 --dataset test_interpolated.csv --output out.mp4
  platecam render --video sample.mp4 --wait --wait-timeout 10m --reencode
  platecam tracks --dataset test_interpolated.csv`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(configPath)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable coloured output")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(versionCmd)
}

// bindFlags lets flags the user actually set override file and env values
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func setupLogging(w io.Writer, lc config.LogConfig) {
	noColor := lc.NoColor || !isTerminal(w)
	if noColor {
		pterm.DisableColor()
	}

	logger = slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      parseLevel(lc.Level),
			TimeFormat: "15:04:05",
			NoColor:    noColor,
		}),
	).With("run_id", uuid.NewString())

	slog.SetDefault(logger)
	detection.SetLogger(logger)
	overlay.SetLogger(logger)
	pipeline.SetLogger(logger)
	ffmpeg.SetLogger(logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		attrs := []any{"error", err}
		if hints := errors.FlattenHints(err); hints != "" {
			attrs = append(attrs, "hint", hints)
		}
		if kind := errors.KindOf(err); kind != "internal" {
			attrs = append(attrs, "kind", kind)
		}
		logger.Error("platecam failed", attrs...)
		os.Exit(1)
	}
}

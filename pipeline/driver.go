// Package pipeline drives one render: decode every frame of the source
// video, composite the plate overlays for the cars the dataset places on
// that frame, and encode the result frame for frame.
package pipeline

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"platecam/detection"
	"platecam/errors"
	"platecam/overlay"
	"platecam/tracking"
)

// logger is installed by the main package via SetLogger
var logger = slog.Default()

// SetLogger allows main package to provide the structured logger
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// progressInterval spaces out the periodic progress line
const progressInterval = 5 * time.Second

// State is the driver's lifecycle position
type State int32

const (
	StateOpening State = iota
	StateStreaming
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Driver
type Options struct {
	Input  string
	Output string
	Codec  string // fourcc, e.g. "mp4v"
	Style  overlay.Style

	// Openers default to the OpenCV implementations
	OpenSource SourceOpener
	OpenSink   SinkOpener
}

// Driver renders one annotated video. A Driver runs once.
type Driver struct {
	opts     Options
	index    *detection.FrameIndex
	registry *tracking.Registry
	planner  *overlay.Planner
	renderer *overlay.Renderer
	state    atomic.Int32
}

// NewDriver creates a driver over a frame index and the registry built from
// the same records
func NewDriver(opts Options, index *detection.FrameIndex, registry *tracking.Registry) *Driver {
	if opts.OpenSource == nil {
		opts.OpenSource = openCapture
	}
	if opts.OpenSink == nil {
		opts.OpenSink = openWriter
	}
	return &Driver{
		opts:     opts,
		index:    index,
		registry: registry,
		planner:  overlay.NewPlanner(opts.Style),
		renderer: overlay.NewRenderer(opts.Style),
	}
}

// State reports the current lifecycle state. It is safe to call while Run
// is in progress.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	logger.Debug("Pipeline state", "state", s.String())
}

// Run renders the whole input. Per-record overlay failures are logged and
// counted in Stats; only IO failures on the videos end the run with an
// error, in which case no output file is left behind.
func (d *Driver) Run() (Stats, error) {
	start := time.Now()
	stats := newStats()

	err := d.run(&stats)
	stats.Elapsed = time.Since(start)

	if err != nil {
		d.setState(StateFailed)
		return stats, err
	}

	d.setState(StateClosed)
	logger.Info("Render complete", "output", d.opts.Output, "stats", stats)
	return stats, nil
}

func (d *Driver) run(stats *Stats) error {
	d.setState(StateOpening)

	src, err := d.opts.OpenSource(d.opts.Input)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to release source video", "input", d.opts.Input, "error", err)
		}
	}()

	props := src.Properties()
	if props.Width <= 0 || props.Height <= 0 || props.FPS <= 0 {
		return errors.WithHint(
			errors.Mark(errors.Newf("source %s reports %dx%d at %.2f fps", d.opts.Input, props.Width, props.Height, props.FPS), errors.ErrIO),
			"the input may not be a decodable video")
	}
	logger.Info("Source opened",
		"input", d.opts.Input,
		"width", props.Width,
		"height", props.Height,
		"fps", props.FPS,
		"frames", props.FrameCount)

	sink, err := d.opts.OpenSink(d.opts.Output, props, d.opts.Codec)
	if err != nil {
		d.removeOutput()
		return err
	}

	d.setState(StateStreaming)
	streamErr := d.stream(src, sink, props, stats)

	d.setState(StateDraining)
	closeErr := sink.Close()

	if streamErr != nil || closeErr != nil {
		d.removeOutput()
		if streamErr != nil {
			return streamErr
		}
		return closeErr
	}

	if last := d.index.MaxFrame(); last >= stats.FramesRead {
		logger.Warn("Dataset has rows past the end of the video",
			"last_dataset_frame", last,
			"frames_read", stats.FramesRead)
	}
	return nil
}

func (d *Driver) stream(src FrameSource, sink FrameSink, props VideoProperties, stats *Stats) error {
	frame := gocv.NewMat()
	defer frame.Close()

	lastReport := time.Now()
	for frameNmr := 0; ; frameNmr++ {
		readStart := time.Now()
		if ok := src.Read(&frame); !ok || frame.Empty() {
			return nil
		}
		stats.updateRead(time.Since(readStart))

		renderStart := time.Now()
		for _, rec := range d.index.At(frameNmr) {
			if err := d.drawOverlay(&frame, rec); err != nil {
				kind := errors.KindOf(err)
				stats.skip(kind)
				logger.Warn("Overlay skipped",
					"car_id", rec.CarID,
					"frame", frameNmr,
					"line", rec.Line,
					"kind", kind,
					"error", err)
				continue
			}
			stats.OverlaysDrawn++
		}
		stats.updateRender(time.Since(renderStart))

		writeStart := time.Now()
		if err := sink.Write(frame); err != nil {
			return errors.Wrapf(errors.Mark(err, errors.ErrIO), "frame %d", frameNmr)
		}
		stats.updateWrite(time.Since(writeStart))

		if time.Since(lastReport) >= progressInterval {
			lastReport = time.Now()
			logger.Info("Rendering",
				"frame", frameNmr,
				"of", props.FrameCount,
				"overlays_drawn", stats.OverlaysDrawn)
		}
	}
}

// drawOverlay plans and renders one record onto frame. OpenCV panics are
// converted to errors so they cost one overlay, not the run.
func (d *Driver) drawOverlay(frame *gocv.Mat, rec detection.DetectionRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.AssertionFailedf("overlay for car %d panicked: %v", rec.CarID, r)
		}
	}()

	car, err := rec.Car()
	if err != nil {
		return err
	}
	plate, err := rec.Plate()
	if err != nil {
		return err
	}
	text, err := d.registry.Lookup(rec.CarID)
	if err != nil {
		return err
	}

	plan, err := d.planner.Plan(*frame, car, plate)
	if err != nil {
		return err
	}
	defer plan.Close()

	return d.renderer.Render(frame, plan, car, text)
}

func (d *Driver) removeOutput() {
	if d.opts.Output == "" {
		return
	}
	if err := os.Remove(d.opts.Output); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove partial output", "output", d.opts.Output, "error", err)
	}
}

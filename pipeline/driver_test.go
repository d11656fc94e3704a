package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"platecam/detection"
	"platecam/errors"
	"platecam/overlay"
	"platecam/tracking"
)

// Car 7 reads ABC123 on its first frame and XYZ999 on frame 2. Car 11 has a
// plate box entirely left of the frame, car 9 an unparseable car box.
const renderCSV = `frame_nmr,car_id,car_bbox,license_plate_bbox,license_number
0,7,[150 200 350 400],[200 300 300 340],ABC123
0,11,[400 250 600 450],[-100 300 -10 340],QQQ111
1,7,[150 200 350 400],[200 300 300 340],ABC123
1,9,oops,[450 300 550 340],JKL456
2,7,[150 200 350 400],[200 300 300 340],XYZ999
`

var (
	car7   = detection.Rect{X1: 150, Y1: 200, X2: 350, Y2: 400}
	plate7 = detection.Rect{X1: 200, Y1: 300, X2: 300, Y2: 340}
)

// sourceFrame is a 640x480 grey frame with a coloured plate region for car 7
func sourceFrame() gocv.Mat {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(50, 50, 50, 0))

	plate := frame.Region(plate7.Image())
	plate.SetTo(gocv.NewScalar(0, 0, 200, 0))
	plate.Close()
	return frame
}

type memSource struct {
	frames []gocv.Mat
	next   int
	props  VideoProperties
	closed bool
}

func newMemSource(n int) *memSource {
	s := &memSource{props: VideoProperties{FPS: 25, Width: 640, Height: 480, FrameCount: n}}
	for i := 0; i < n; i++ {
		s.frames = append(s.frames, sourceFrame())
	}
	return s
}

func (s *memSource) Read(dst *gocv.Mat) bool {
	if s.next >= len(s.frames) {
		return false
	}
	s.frames[s.next].CopyTo(dst)
	s.next++
	return true
}

func (s *memSource) Properties() VideoProperties { return s.props }

func (s *memSource) Close() error {
	s.closed = true
	for _, f := range s.frames {
		f.Close()
	}
	return nil
}

type memSink struct {
	frames []gocv.Mat
	props  VideoProperties
	codec  string
	failAt int // frame index whose Write fails, -1 for never
	closed bool
}

func (s *memSink) Write(frame gocv.Mat) error {
	if len(s.frames) == s.failAt {
		return errors.New("disk full")
	}
	s.frames = append(s.frames, frame.Clone())
	return nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

func (s *memSink) release() {
	for _, f := range s.frames {
		f.Close()
	}
}

type harness struct {
	src    *memSource
	sink   *memSink
	output string
	driver *Driver
}

func newHarness(t *testing.T, frames int, failAt int) *harness {
	t.Helper()

	ds, err := detection.ReadDataset(strings.NewReader(renderCSV))
	require.NoError(t, err)

	h := &harness{
		src:    newMemSource(frames),
		sink:   &memSink{failAt: failAt},
		output: filepath.Join(t.TempDir(), "out.mp4"),
	}
	t.Cleanup(h.sink.release)

	opts := Options{
		Input:  "in.mp4",
		Output: h.output,
		Codec:  "mp4v",
		Style:  overlay.DefaultStyle(),
		OpenSource: func(string) (FrameSource, error) {
			return h.src, nil
		},
		OpenSink: func(path string, props VideoProperties, codec string) (FrameSink, error) {
			h.sink.props = props
			h.sink.codec = codec
			// stands in for the encoder creating the container
			if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
				return nil, err
			}
			return h.sink, nil
		},
	}
	h.driver = NewDriver(opts, detection.NewFrameIndex(ds.Records), tracking.BuildRegistry(ds.Records))
	return h
}

// expectedFrame renders car 7 alone onto a fresh source frame
func expectedFrame(t *testing.T, text string) gocv.Mat {
	t.Helper()

	frame := sourceFrame()
	style := overlay.DefaultStyle()
	plan, err := overlay.NewPlanner(style).Plan(frame, car7, plate7)
	require.NoError(t, err)
	defer plan.Close()
	require.NoError(t, overlay.NewRenderer(style).Render(&frame, plan, car7, text))
	return frame
}

func TestDriver_Run(t *testing.T) {
	h := newHarness(t, 4, -1)
	assert.Equal(t, StateOpening, h.driver.State())

	stats, err := h.driver.Run()
	require.NoError(t, err)

	assert.Equal(t, StateClosed, h.driver.State())
	assert.True(t, h.src.closed)
	assert.True(t, h.sink.closed)

	// output mirrors input
	require.Len(t, h.sink.frames, 4)
	assert.Equal(t, h.src.props, h.sink.props)
	assert.Equal(t, "mp4v", h.sink.codec)
	for _, f := range h.sink.frames {
		assert.Equal(t, 640, f.Cols())
		assert.Equal(t, 480, f.Rows())
	}

	assert.Equal(t, 4, stats.FramesRead)
	assert.Equal(t, 4, stats.FramesWritten)
	assert.Equal(t, 3, stats.OverlaysDrawn)
	assert.Equal(t, 1, stats.OverlaysSkipped["geometry"])
	assert.Equal(t, 1, stats.OverlaysSkipped["format"])
	assert.Equal(t, 2, stats.Skipped())
	assert.Positive(t, stats.Elapsed)

	_, err = os.Stat(h.output)
	assert.NoError(t, err)
}

func TestDriver_CanonicalTextOnEveryFrame(t *testing.T) {
	h := newHarness(t, 4, -1)
	_, err := h.driver.Run()
	require.NoError(t, err)

	canonical := expectedFrame(t, "ABC123")
	defer canonical.Close()
	perRow := expectedFrame(t, "XYZ999")
	defer perRow.Close()

	// frame 2's row says XYZ999, the overlay still shows the first reading
	for i := 0; i < 3; i++ {
		assert.Equal(t, canonical.ToBytes(), h.sink.frames[i].ToBytes(), "frame %d", i)
	}
	assert.NotEqual(t, perRow.ToBytes(), h.sink.frames[2].ToBytes())
}

func TestDriver_FramesWithoutRowsPassThrough(t *testing.T) {
	h := newHarness(t, 4, -1)
	_, err := h.driver.Run()
	require.NoError(t, err)

	plain := sourceFrame()
	defer plain.Close()
	assert.Equal(t, plain.ToBytes(), h.sink.frames[3].ToBytes())
}

func TestDriver_Deterministic(t *testing.T) {
	first := newHarness(t, 3, -1)
	_, err := first.driver.Run()
	require.NoError(t, err)

	second := newHarness(t, 3, -1)
	_, err = second.driver.Run()
	require.NoError(t, err)

	for i := range first.sink.frames {
		assert.Equal(t, first.sink.frames[i].ToBytes(), second.sink.frames[i].ToBytes(), "frame %d", i)
	}
}

func TestDriver_RowsPastEndOfVideo(t *testing.T) {
	h := newHarness(t, 1, -1)
	stats, err := h.driver.Run()
	require.NoError(t, err)

	assert.Len(t, h.sink.frames, 1)
	assert.Equal(t, 1, stats.OverlaysDrawn)
	assert.Equal(t, 1, stats.OverlaysSkipped["geometry"])
}

func TestDriver_SourceOpenFailure(t *testing.T) {
	h := newHarness(t, 1, -1)
	sinkOpened := false
	h.driver.opts.OpenSource = func(path string) (FrameSource, error) {
		return nil, errors.Mark(errors.Newf("cannot open %s", path), errors.ErrIO)
	}
	h.driver.opts.OpenSink = func(string, VideoProperties, string) (FrameSink, error) {
		sinkOpened = true
		return h.sink, nil
	}

	_, err := h.driver.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
	assert.Equal(t, StateFailed, h.driver.State())
	assert.False(t, sinkOpened)
}

func TestDriver_UndecodableSource(t *testing.T) {
	h := newHarness(t, 1, -1)
	h.src.props.FPS = 0

	_, err := h.driver.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
	assert.Equal(t, StateFailed, h.driver.State())
	assert.True(t, h.src.closed)
}

func TestDriver_SinkOpenFailureRemovesOutput(t *testing.T) {
	h := newHarness(t, 1, -1)
	h.driver.opts.OpenSink = func(path string, _ VideoProperties, _ string) (FrameSink, error) {
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		return nil, errors.Mark(errors.New("no encoder"), errors.ErrIO)
	}

	_, err := h.driver.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
	assert.Equal(t, StateFailed, h.driver.State())
	assert.True(t, h.src.closed)

	_, statErr := os.Stat(h.output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDriver_WriteFailureRemovesOutput(t *testing.T) {
	h := newHarness(t, 4, 2)

	stats, err := h.driver.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
	assert.Contains(t, err.Error(), "frame 2")
	assert.Equal(t, StateFailed, h.driver.State())
	assert.Equal(t, 2, stats.FramesWritten)
	assert.True(t, h.sink.closed)
	assert.True(t, h.src.closed)

	_, statErr := os.Stat(h.output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

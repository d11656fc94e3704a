package pipeline

import (
	"gocv.io/x/gocv"

	"platecam/errors"
)

// VideoProperties describes a decoded stream. The destination is opened with
// the same values so output frame N lines up with input frame N.
type VideoProperties struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int // container estimate, may be 0
}

// FrameSource yields decoded frames in order
type FrameSource interface {
	// Read decodes the next frame into dst, returning false at end of stream
	Read(dst *gocv.Mat) bool
	Properties() VideoProperties
	Close() error
}

// FrameSink encodes frames in order
type FrameSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// SourceOpener opens the input video
type SourceOpener func(path string) (FrameSource, error)

// SinkOpener opens the output video with the given properties and fourcc
type SinkOpener func(path string, props VideoProperties, codec string) (FrameSink, error)

// CaptureSource reads frames through an OpenCV VideoCapture
type CaptureSource struct {
	capture *gocv.VideoCapture
	props   VideoProperties
}

// OpenSource opens path for decoding
func OpenSource(path string) (*CaptureSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, ioError(errors.Wrapf(err, "open video %s", path), "check the --video path")
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, ioError(errors.Newf("video %s could not be opened", path), "check the --video path")
	}

	return &CaptureSource{
		capture: capture,
		props: VideoProperties{
			FPS:        capture.Get(gocv.VideoCaptureFPS),
			Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		},
	}, nil
}

func (s *CaptureSource) Read(dst *gocv.Mat) bool {
	return s.capture.Read(dst)
}

func (s *CaptureSource) Properties() VideoProperties {
	return s.props
}

func (s *CaptureSource) Close() error {
	return s.capture.Close()
}

// WriterSink encodes frames through an OpenCV VideoWriter
type WriterSink struct {
	writer *gocv.VideoWriter
	path   string
}

// OpenSink opens path for encoding with the fourcc codec
func OpenSink(path string, props VideoProperties, codec string) (*WriterSink, error) {
	writer, err := gocv.VideoWriterFile(path, codec, props.FPS, props.Width, props.Height, true)
	if err != nil {
		return nil, ioError(errors.Wrapf(err, "open output %s", path), "check the --output directory and video.codec")
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, ioError(errors.Newf("no encoder for codec %q at %s", codec, path), "check the --output directory and video.codec")
	}
	return &WriterSink{writer: writer, path: path}, nil
}

func (s *WriterSink) Write(frame gocv.Mat) error {
	if err := s.writer.Write(frame); err != nil {
		return errors.Mark(errors.Wrapf(err, "write frame to %s", s.path), errors.ErrIO)
	}
	return nil
}

// Close finalizes the container
func (s *WriterSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return errors.Mark(errors.Wrapf(err, "finalize %s", s.path), errors.ErrIO)
	}
	return nil
}

func openCapture(path string) (FrameSource, error) {
	s, err := OpenSource(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openWriter(path string, props VideoProperties, codec string) (FrameSink, error) {
	s, err := OpenSink(path, props, codec)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func ioError(err error, hint string) error {
	return errors.WithHint(errors.Mark(err, errors.ErrIO), hint)
}

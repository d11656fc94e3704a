package detection

import (
	"image"
	"log/slog"

	"platecam/errors"
)

// logger is installed by the main package so detection logs through the
// same handler as the rest of the pipeline
var logger = slog.Default()

// SetLogger allows main package to provide the structured logger
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Rect is a pixel rectangle as encoded upstream. The corners are not
// guaranteed to be ordered; call Normalized before measuring.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Normalized returns r with each axis pair sorted so X1 <= X2 and Y1 <= Y2
func (r Rect) Normalized() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Image converts r to an image.Rectangle without canonicalizing it
func (r Rect) Image() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.X1, r.Y1), Max: image.Pt(r.X2, r.Y2)}
}

// DetectionRecord is one dataset row: one vehicle seen in one frame.
//
// Bounding boxes are kept as the raw upstream text and decoded on demand,
// so a malformed rectangle only fails the record it belongs to.
type DetectionRecord struct {
	FrameNmr      int
	CarID         int
	CarBBox       string
	PlateBBox     string
	LicenseNumber string
	Line          int // 1-based line in the source dataset, 0 when built in code
}

// Car decodes the vehicle bounding box
func (r DetectionRecord) Car() (Rect, error) {
	rect, err := ParseBBox(r.CarBBox)
	if err != nil {
		return Rect{}, errors.Wrap(err, "car_bbox")
	}
	return rect, nil
}

// Plate decodes the license plate bounding box
func (r DetectionRecord) Plate() (Rect, error) {
	rect, err := ParseBBox(r.PlateBBox)
	if err != nil {
		return Rect{}, errors.Wrap(err, "license_plate_bbox")
	}
	return rect, nil
}

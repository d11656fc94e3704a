package overlay

import (
	"image"
	"log/slog"
	"math"

	"gocv.io/x/gocv"

	"platecam/detection"
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

// Layout is the pixel geometry of one plate overlay, before any pixels move
type Layout struct {
	PlateRect    image.Rectangle // plate box normalized and clamped into the frame
	TargetWidth  int             // aspect-correct thumbnail width
	TargetHeight int
	Placement    image.Rectangle // where the thumbnail is blitted
}

// ActualWidth is the thumbnail width after clamping to the frame edges
func (l Layout) ActualWidth() int {
	return l.Placement.Dx()
}

// ComputeLayout places the plate thumbnail for one car on a frame of the
// given size. The thumbnail height follows the car box height, its width
// keeps the plate crop's aspect ratio, and it is centered horizontally over
// the car, ThumbnailGap pixels above it. Any step that collapses to zero
// area returns an error marked ErrGeometry.
func ComputeLayout(frameSize image.Point, car, plate detection.Rect, style Style) (Layout, error) {
	width, height := frameSize.X, frameSize.Y
	if width <= 0 || height <= 0 {
		return Layout{}, geometryErrorf("empty frame %dx%d", width, height)
	}

	// leading edges stay inside the frame, so a plate past the right or
	// bottom border still yields a one pixel strip
	p := plate.Normalized()
	x1 := clamp(p.X1, 0, width-1)
	x2 := clamp(p.X2, 0, width)
	y1 := clamp(p.Y1, 0, height-1)
	y2 := clamp(p.Y2, 0, height)
	if x2 <= x1 || y2 <= y1 {
		return Layout{}, geometryErrorf("plate box %v is empty after clamping to %dx%d", plate, width, height)
	}
	plateRect := image.Rect(x1, y1, x2, y2)

	c := car.Normalized()
	targetHeight := roundInt(float64(c.Height()) * style.ThumbnailRatio)
	if targetHeight <= 0 {
		return Layout{}, geometryErrorf("car box %v too short for a thumbnail", car)
	}

	aspect := float64(plateRect.Dx()) / float64(plateRect.Dy())
	targetWidth := roundInt(aspect * float64(targetHeight))
	if targetWidth <= 0 {
		return Layout{}, geometryErrorf("plate crop %dx%d gives a zero-width thumbnail", plateRect.Dx(), plateRect.Dy())
	}

	centerX := floorDiv(c.X1+c.X2, 2)
	leftX := clamp(centerX-targetWidth/2, 0, width)
	rightX := clamp(centerX+targetWidth/2, 0, width)
	if rightX-leftX <= 0 {
		return Layout{}, geometryErrorf("thumbnail for car box %v falls outside the frame", car)
	}

	topY := max(0, c.Y1-targetHeight-style.ThumbnailGap)
	if topY+targetHeight > height {
		return Layout{}, geometryErrorf("thumbnail of height %d does not fit below row %d", targetHeight, topY)
	}

	return Layout{
		PlateRect:    plateRect,
		TargetWidth:  targetWidth,
		TargetHeight: targetHeight,
		Placement:    image.Rect(leftX, topY, rightX, topY+targetHeight),
	}, nil
}

// Plan is a Layout plus the resized plate thumbnail. The thumbnail is owned
// by the plan; Close releases it.
type Plan struct {
	Layout
	Thumbnail gocv.Mat
}

// Close releases the thumbnail
func (p *Plan) Close() error {
	return p.Thumbnail.Close()
}

// Planner crops and resizes plate thumbnails according to a Style
type Planner struct {
	style Style
}

// NewPlanner creates a planner for style
func NewPlanner(style Style) *Planner {
	return &Planner{style: style}
}

// Plan computes the layout for one car and builds its thumbnail from the
// current frame contents. The crop is first resized aspect-correct and then
// stretched to the clamped horizontal span, so thumbnails that hit a frame
// edge are squeezed rather than cut.
func (p *Planner) Plan(frame gocv.Mat, car, plate detection.Rect) (*Plan, error) {
	if frame.Empty() {
		return nil, geometryErrorf("empty frame")
	}

	layout, err := ComputeLayout(image.Pt(frame.Cols(), frame.Rows()), car, plate, p.style)
	if err != nil {
		return nil, err
	}

	crop := frame.Region(layout.PlateRect)
	defer crop.Close()

	aspectCorrect := gocv.NewMat()
	defer aspectCorrect.Close()
	gocv.Resize(crop, &aspectCorrect, image.Pt(layout.TargetWidth, layout.TargetHeight), 0, 0, gocv.InterpolationLinear)

	thumb := gocv.NewMat()
	gocv.Resize(aspectCorrect, &thumb, image.Pt(layout.ActualWidth(), layout.TargetHeight), 0, 0, gocv.InterpolationLinear)
	if thumb.Empty() {
		thumb.Close()
		return nil, geometryErrorf("resize of plate crop %v produced an empty thumbnail", layout.PlateRect)
	}

	if layout.ActualWidth() != layout.TargetWidth {
		logger.Debug("Thumbnail stretched at frame edge",
			"target_width", layout.TargetWidth,
			"actual_width", layout.ActualWidth())
	}

	return &Plan{Layout: layout, Thumbnail: thumb}, nil
}

func geometryErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errors.ErrGeometry)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func roundInt(f float64) int {
	return int(math.Round(f))
}

// floorDiv divides rounding toward negative infinity, so boxes hanging off
// the left edge center the same way as boxes inside the frame
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

package overlay

import (
	"image"

	"gocv.io/x/gocv"

	"platecam/detection"
)

// Renderer composites plate overlays onto frames
type Renderer struct {
	style Style
}

// NewRenderer creates a new overlay renderer
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Render draws one car's overlay onto img. Later steps intentionally paint
// over earlier ones, so the order is fixed: corner border, plate box,
// thumbnail, text panel, text.
func (r *Renderer) Render(img *gocv.Mat, plan *Plan, car detection.Rect, text string) error {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	if !plan.Placement.In(bounds) {
		return geometryErrorf("placement %v outside frame %v", plan.Placement, bounds)
	}
	if plan.Thumbnail.Cols() != plan.Placement.Dx() || plan.Thumbnail.Rows() != plan.Placement.Dy() {
		return geometryErrorf("thumbnail %dx%d does not match placement %v",
			plan.Thumbnail.Cols(), plan.Thumbnail.Rows(), plan.Placement)
	}

	r.drawCornerBorder(img, car.Normalized())

	gocv.Rectangle(img, plan.PlateRect, r.style.PlateColor, r.style.PlateThickness)

	target := img.Region(plan.Placement)
	plan.Thumbnail.CopyTo(&target)
	target.Close()

	panel := r.panelRect(plan.Layout)
	if !panel.Empty() {
		bg := img.Region(panel)
		bg.SetTo(scalar(r.style.PanelColor))
		bg.Close()
	}

	if text != "" {
		t := r.textLayout(plan.Layout, text)
		gocv.PutText(img, text, t.origin, r.style.Font, t.scale, r.style.TextColor, t.thickness)
	}

	return nil
}

// drawCornerBorder draws two segments at each corner of rect instead of a
// full rectangle, keeping the vehicle itself visible
func (r *Renderer) drawCornerBorder(img *gocv.Mat, rect detection.Rect) {
	c := r.style.CarColor
	t := r.style.CornerThickness
	l := r.style.CornerLength

	// Top-left corner
	gocv.Line(img, image.Pt(rect.X1, rect.Y1), image.Pt(rect.X1, rect.Y1+l), c, t)
	gocv.Line(img, image.Pt(rect.X1, rect.Y1), image.Pt(rect.X1+l, rect.Y1), c, t)

	// Bottom-left corner
	gocv.Line(img, image.Pt(rect.X1, rect.Y2), image.Pt(rect.X1, rect.Y2-l), c, t)
	gocv.Line(img, image.Pt(rect.X1, rect.Y2), image.Pt(rect.X1+l, rect.Y2), c, t)

	// Top-right corner
	gocv.Line(img, image.Pt(rect.X2, rect.Y1), image.Pt(rect.X2-l, rect.Y1), c, t)
	gocv.Line(img, image.Pt(rect.X2, rect.Y1), image.Pt(rect.X2, rect.Y1+l), c, t)

	// Bottom-right corner
	gocv.Line(img, image.Pt(rect.X2, rect.Y2), image.Pt(rect.X2, rect.Y2-l), c, t)
	gocv.Line(img, image.Pt(rect.X2, rect.Y2), image.Pt(rect.X2-l, rect.Y2), c, t)
}

// panelRect is the text background: PanelRatio of the thumbnail height,
// PanelGap pixels above it, never above the frame top. It is empty when the
// thumbnail already sits against the top edge.
func (r *Renderer) panelRect(l Layout) image.Rectangle {
	panelHeight := roundInt(float64(l.TargetHeight) * r.style.PanelRatio)
	top := max(0, l.Placement.Min.Y-panelHeight-r.style.PanelGap)
	bottom := l.Placement.Min.Y - r.style.PanelGap
	if bottom <= top {
		return image.Rectangle{}
	}
	return image.Rect(l.Placement.Min.X, top, l.Placement.Max.X, bottom)
}

type textPlacement struct {
	origin    image.Point // baseline-left, as PutText expects
	scale     float64
	thickness int
}

// textLayout scales the plate text with the placement width and centers it
// in the nominal (unclamped) panel box
func (r *Renderer) textLayout(l Layout, text string) textPlacement {
	actualWidth := l.ActualWidth()
	scale := float64(actualWidth) / r.style.TextBaseWidth * r.style.TextScaleFactor
	thickness := max(r.style.MinTextThickness, roundInt(scale*5))

	size := gocv.GetTextSize(text, r.style.Font, scale, thickness)

	panelHeight := roundInt(float64(l.TargetHeight) * r.style.PanelRatio)
	panelTop := max(0, l.Placement.Min.Y-panelHeight-r.style.PanelGap)

	return textPlacement{
		origin: image.Pt(
			l.Placement.Min.X+floorDiv(actualWidth-size.X, 2),
			panelTop+floorDiv(panelHeight+size.Y, 2),
		),
		scale:     scale,
		thickness: thickness,
	}
}

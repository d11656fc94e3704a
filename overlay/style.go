package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Style holds every tunable of the plate overlay
type Style struct {
	CarColor   color.RGBA // corner border around the vehicle
	PlateColor color.RGBA // rectangle around the detected plate
	PanelColor color.RGBA // background behind the plate text
	TextColor  color.RGBA

	CornerLength    int // length of each corner segment in pixels
	CornerThickness int
	PlateThickness  int

	ThumbnailRatio float64 // thumbnail height as a fraction of the car box height
	ThumbnailGap   int     // pixels between thumbnail bottom and car box top
	PanelRatio     float64 // panel height as a fraction of the thumbnail height
	PanelGap       int     // pixels between panel bottom and thumbnail top

	TextBaseWidth    float64 // placement width that renders at TextScaleFactor
	TextScaleFactor  float64
	MinTextThickness int
	Font             gocv.HersheyFont
}

// DefaultStyle returns the stock look: green corners, red plate box, white
// panel with black text
func DefaultStyle() Style {
	return Style{
		CarColor:         color.RGBA{0, 255, 0, 255},
		PlateColor:       color.RGBA{255, 0, 0, 255},
		PanelColor:       color.RGBA{255, 255, 255, 255},
		TextColor:        color.RGBA{0, 0, 0, 255},
		CornerLength:     200,
		CornerThickness:  25,
		PlateThickness:   12,
		ThumbnailRatio:   0.35,
		ThumbnailGap:     20,
		PanelRatio:       0.8,
		PanelGap:         10,
		TextBaseWidth:    400,
		TextScaleFactor:  1.5,
		MinTextThickness: 2,
		Font:             gocv.FontHersheySimplex,
	}
}

// Validate reports style values that would make every overlay degenerate
func (s Style) Validate() error {
	switch {
	case s.CornerLength < 0:
		return fmt.Errorf("corner length must be >= 0, got %d", s.CornerLength)
	case s.CornerThickness <= 0 || s.PlateThickness <= 0:
		return fmt.Errorf("line thickness must be > 0 (corner %d, plate %d)", s.CornerThickness, s.PlateThickness)
	case s.ThumbnailRatio <= 0:
		return fmt.Errorf("thumbnail ratio must be > 0, got %g", s.ThumbnailRatio)
	case s.PanelRatio < 0:
		return fmt.Errorf("panel ratio must be >= 0, got %g", s.PanelRatio)
	case s.ThumbnailGap < 0 || s.PanelGap < 0:
		return fmt.Errorf("gaps must be >= 0 (thumbnail %d, panel %d)", s.ThumbnailGap, s.PanelGap)
	case s.TextBaseWidth <= 0 || s.TextScaleFactor <= 0:
		return fmt.Errorf("text scale base and factor must be > 0")
	case s.MinTextThickness <= 0:
		return fmt.Errorf("minimum text thickness must be > 0, got %d", s.MinTextThickness)
	}
	return nil
}

// ParseHexColor parses "rrggbb" or "#rrggbb" into an opaque color
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// scalar converts c into the BGR channel order OpenCV frames use
func scalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}

package detection

import (
	"math"
	"strconv"
	"strings"

	"platecam/errors"
)

// ParseBBox decodes a textual rectangle such as "[10, 20, 30.0, 40]" or
// "10 20 30 40". Tokens are split on commas when any comma is present and
// on whitespace otherwise. Each token goes through float parsing and is then
// rounded, since upstream stages mix integer and float formatting.
func ParseBBox(text string) (Rect, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "[")
	cleaned = strings.TrimSuffix(cleaned, "]")

	var parts []string
	if strings.Contains(cleaned, ",") {
		parts = strings.Split(cleaned, ",")
	} else {
		parts = strings.Fields(cleaned)
	}

	if len(parts) != 4 {
		return Rect{}, errors.Mark(
			errors.Newf("bbox %q: expected 4 values, got %d", text, len(parts)),
			errors.ErrFormat)
	}

	var vals [4]int
	for i, part := range parts {
		token := strings.TrimSpace(part)
		f, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Rect{}, errors.Mark(
				errors.Newf("bbox %q: value %d (%q) is not a number", text, i, token),
				errors.ErrFormat)
		}
		if math.Abs(f) > math.MaxInt32 {
			return Rect{}, errors.Mark(
				errors.Newf("bbox %q: value %d (%q) is out of range", text, i, token),
				errors.ErrFormat)
		}
		vals[i] = int(math.Round(f))
	}

	return Rect{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]}, nil
}

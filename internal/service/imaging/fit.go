// Package imaging produces thumbnails with OpenCV.
package imaging

import "math"

// Fit returns the size of a w x h image scaled by min(maxW/w, maxH/h, 1).
// Images are never enlarged and every side is at least one pixel.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	return clampSide(float64(w) * scale), clampSide(float64(h) * scale)
}

func clampSide(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

package flamegraph

import (
	"math"
	"strconv"
)

// maxGridLinesDivisor bounds how many grid lines may be drawn (canvas
// width in pixels divided by this) before the spacing is coarsened.
const maxGridLinesDivisor = 4.0

// gridSpacingNs chooses grid_spacing_ns = 10^k, the smallest power of ten
// such that canvasWidthNs / spacing does not exceed maxLines.
func gridSpacingNs(canvasWidthNs, canvasWidthPx float64) float64 {
	if canvasWidthNs <= 0 || canvasWidthPx <= 0 {
		return 1
	}
	maxLines := canvasWidthPx / maxGridLinesDivisor
	if maxLines < 1 {
		maxLines = 1
	}

	spacing := 1.0
	for canvasWidthNs/spacing > maxLines {
		spacing *= 10
	}
	return spacing
}

// gridAlphaTier classifies a gridline ns position given the chosen base
// spacing: multiples of 100x the spacing get the top tier, multiples of 10x
// the middle tier, and everything else the bottom tier. The returned alpha
// is always 1.0 (0 for a non-positive spacing); no fade within a tier is
// computed, and buildRuler takes each line's alpha from tierAlpha alone.
func gridAlphaTier(ns, spacingNs float64) (tier int, alpha float64) {
	if spacingNs <= 0 {
		return 0, 0
	}
	mod100 := math.Mod(ns, spacingNs*100)
	if mod100 < 0 {
		mod100 += spacingNs * 100
	}
	if mod100 < 1e-9 {
		return 2, 1.0
	}

	mod10 := math.Mod(ns, spacingNs*10)
	if mod10 < 0 {
		mod10 += spacingNs * 10
	}
	if mod10 < 1e-9 {
		return 1, 1.0
	}

	return 0, 1.0
}

// tierAlpha maps a tier index (0=lowest, 2=highest) to the fixed midpoint of
// its alpha band (0.5..1 / 0.1..0.5 / 0..0.1), scaled by globalFade (0.3
// normally, 0.1 while a filter is active).
func tierAlpha(tier int, globalFade float64) float64 {
	var band float64
	switch tier {
	case 2:
		band = 0.75 // midpoint of 0.5..1
	case 1:
		band = 0.3 // midpoint of 0.1..0.5
	default:
		band = 0.05 // midpoint of 0..0.1
	}
	return band * globalFade
}

// formatMs renders a millisecond value with 0-3 decimal places, choosing
// the smallest precision (by remainder modulo powers of ten) that round-trips
// the value exactly.
func formatMs(ms float64) string {
	for decimals := 0; decimals <= 3; decimals++ {
		scale := math.Pow(10, float64(decimals))
		rounded := math.Round(ms*scale) / scale
		if math.Abs(rounded-ms) < 1e-9 {
			return strconv.FormatFloat(rounded, 'f', decimals, 64)
		}
	}
	return strconv.FormatFloat(ms, 'f', 3, 64)
}

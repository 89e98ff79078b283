package flamegraph

import "math"

// AnimationDuration is the fixed length of the view-reset / click-to-zoom
// interpolation.
const AnimationDuration = 0.75 // seconds

// Pan applies a horizontal drag/scroll delta (in pixels) to panXInNs, given
// the current canvasWidthNs and canvas pixel width. Pan is linear in ns
// space: dragging by dxPixels shifts the window by
// dxPixels * canvasWidthNs / canvas.Width nanoseconds.
func Pan(panXInNs, canvasWidthNs, canvasWidthPx, dxPixels float64) float64 {
	if canvasWidthPx == 0 {
		return panXInNs
	}
	return panXInNs + dxPixels*canvasWidthNs/canvasWidthPx
}

// ZoomAtPointer scales canvasWidthNs by 1/factor, pivoting on the pointer's
// x position so that PointFromNs(mouseNs) is preserved before and after. It
// returns the new (canvasWidthNs, panXInNs) pair.
func ZoomAtPointer(canvas Canvas, minNs, panXInNs, canvasWidthNs, factor, pointerX float64) (newWidthNs, newPanXInNs float64) {
	if factor == 0 {
		factor = 1
	}
	mouseNs := minNs - panXInNs + canvasWidthNs*(pointerX-canvas.MinX)/canvas.Width

	newWidthNs = canvasWidthNs / factor
	// Solve for the new pan that keeps point_from_ns(mouseNs) == pointerX:
	// pointerX = canvas.MinX + canvas.Width * (mouseNs - minNs + newPan) / newWidthNs
	newPanXInNs = (pointerX-canvas.MinX)*newWidthNs/canvas.Width - mouseNs + minNs
	return newWidthNs, newPanXInNs
}

// AnimationState describes an in-flight view-reset or click-to-zoom
// interpolation. Zoom is interpolated in inverse-width space
// (1/canvas_width_ns), pan linearly.
type AnimationState struct {
	StartInvWidth, TargetInvWidth float64
	StartPan, TargetPan           float64
	ElapsedSeconds                float64
}

// NewResetAnimation builds an animation from the current view to the full
// ns_range (canvasWidthNs = maxNs-minNs, panXInNs = 0).
func NewResetAnimation(currentWidthNs, currentPan float64, minNs, maxNs int64) AnimationState {
	target := float64(maxNs - minNs)
	if target <= 0 {
		target = 1
	}
	return AnimationState{
		StartInvWidth:  1 / currentWidthNs,
		TargetInvWidth: 1 / target,
		StartPan:       currentPan,
		TargetPan:      0,
	}
}

// NewFocusAnimation builds an animation from the current view to a window
// exactly spanning [focusMinNs, focusMaxNs], used by single-click-to-zoom.
func NewFocusAnimation(currentWidthNs, currentPan float64, viewMinNs int64, focusMinNs, focusMaxNs int64) AnimationState {
	target := float64(focusMaxNs - focusMinNs)
	if target <= 0 {
		target = 1
	}
	return AnimationState{
		StartInvWidth:  1 / currentWidthNs,
		TargetInvWidth: 1 / target,
		StartPan:       currentPan,
		TargetPan:      float64(viewMinNs - focusMinNs),
	}
}

// Step advances the animation by dtSeconds and returns the interpolated
// (canvasWidthNs, panXInNs) along with whether the animation has finished.
func (a *AnimationState) Step(dtSeconds float64) (canvasWidthNs, panXInNs float64, done bool) {
	a.ElapsedSeconds += dtSeconds
	frac := a.ElapsedSeconds / AnimationDuration
	if frac >= 1 {
		return 1 / a.TargetInvWidth, a.TargetPan, true
	}

	invWidth := a.StartInvWidth + (a.TargetInvWidth-a.StartInvWidth)*frac
	pan := a.StartPan + (a.TargetPan-a.StartPan)*frac
	return 1 / invWidth, pan, false
}

// ClearFilter is the trivial pure state transition for clicking the filter
// box's ✕ button.
func ClearFilter(view View) View {
	view.Filter = ""
	return view
}

// approxEqual reports whether a and b differ by no more than the given
// floating-point tolerance; used by tests asserting the zoom pivot
// invariant.
func approxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

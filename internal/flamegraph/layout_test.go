package flamegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerun-io/tracepipe/internal/trace"
	"github.com/rerun-io/tracepipe/internal/wire"
)

func newSpan(t wire.Time, id wire.SpanId, hasParent bool, parent wire.SpanId) wire.Message {
	return wire.Message{LogTime: t, Kind: wire.MsgNewSpan, NewSpan: wire.Span{Id: id, HasParent: hasParent, ParentSpanId: parent, CallsiteId: 1}}
}

func enter(t wire.Time, id wire.SpanId) wire.Message {
	return wire.Message{LogTime: t, Kind: wire.MsgEnterSpan, SpanId: id}
}

func exit(t wire.Time, id wire.SpanId) wire.Message {
	return wire.Message{LogTime: t, Kind: wire.MsgExitSpan, SpanId: id}
}

func destroy(t wire.Time, id wire.SpanId) wire.Message {
	return wire.Message{LogTime: t, Kind: wire.MsgDestroySpan, SpanId: id}
}

func defaultCanvas() Canvas {
	return Canvas{MinX: 0, MinY: 0, Width: 1000}
}

// TestEmptyIndexProducesNoDrawing covers the "empty index" boundary
// scenario: ns_range is undefined, so Layout must produce no primitives.
func TestEmptyIndexProducesNoDrawing(t *testing.T) {
	idx := trace.NewIndex()
	d := Layout(idx, defaultCanvas(), View{})
	assert.Empty(t, d.Blocks)
}

// TestSingleRootNoIntervalsDrawsOneRect covers the "one root with no
// intervals and no events but a known lifetime" boundary scenario: layout
// draws exactly one rectangle spanning its lifetime.
func TestSingleRootNoIntervalsDrawsOneRect(t *testing.T) {
	const S wire.SpanId = 1
	idx := trace.NewIndex()
	idx.Apply(wire.Message{LogTime: 0, Kind: wire.MsgNewCallsite, NewCallsite: wire.Callsite{Id: 1, Kind: wire.CallsiteSpan, Name: "s"}})
	idx.Apply(newSpan(0, S, false, 0))
	idx.Apply(destroy(100, S))

	d := Layout(idx, defaultCanvas(), View{})
	require.Len(t, d.Blocks, 1)
	assert.Equal(t, S, d.Blocks[0].SpanID)
	assert.False(t, d.Blocks[0].Missing)
}

// TestTwoOverlappingRootsStackVertically covers the "two roots overlapping
// in time" boundary scenario: the skyline places the second root below the
// first with the configured spacing.
func TestTwoOverlappingRootsStackVertically(t *testing.T) {
	const A, B wire.SpanId = 1, 2
	idx := trace.NewIndex()
	idx.Apply(newSpan(0, A, false, 0))
	idx.Apply(destroy(100, A))
	idx.Apply(newSpan(10, B, false, 0))
	idx.Apply(destroy(90, B))

	d := Layout(idx, defaultCanvas(), View{})
	require.Len(t, d.Blocks, 2)

	// Root B starts later than root A, so it should be processed second by
	// the priority queue and placed at a strictly lower position.
	var aRect, bRect Rect
	for _, b := range d.Blocks {
		if b.SpanID == A {
			aRect = b.Rect
		} else {
			bRect = b.Rect
		}
	}
	assert.False(t, aRect.Intersects(bRect), "overlapping-time roots must not overlap on screen")
	assert.GreaterOrEqual(t, bRect.MinY, aRect.MaxY+RowSpacing-1e-6)
}

// TestPlacementNonOverlap is the §8 property test: across many
// time-overlapping roots, no two placed bounding boxes intersect.
func TestPlacementNonOverlap(t *testing.T) {
	idx := trace.NewIndex()
	for i := 0; i < 20; i++ {
		id := wire.SpanId(i + 1)
		idx.Apply(newSpan(wire.Time(i), id, false, 0))
		idx.Apply(destroy(wire.Time(i+1000), id))
	}

	d := Layout(idx, Canvas{MinX: 0, MinY: 0, Width: 2000}, View{})
	for i := 0; i < len(d.Blocks); i++ {
		for j := i + 1; j < len(d.Blocks); j++ {
			assert.False(t, d.Blocks[i].Rect.Intersects(d.Blocks[j].Rect),
				"blocks %d and %d must not overlap", i, j)
		}
	}
}

// TestDirectChildPaintedBeneathParent covers a direct child painted in the
// recursive cursor beneath its parent, while a spawned (indirect) child is
// deferred as its own root with a connector back to the parent's bottom
// edge.
func TestDirectChildPaintedBeneathParent(t *testing.T) {
	const P, A, B wire.SpanId = 1, 2, 3
	idx := trace.NewIndex()
	idx.Apply(newSpan(0, P, false, 0))
	idx.Apply(enter(0, P))
	idx.Apply(exit(100, P))

	idx.Apply(newSpan(5, A, true, P))
	idx.Apply(enter(10, A))
	idx.Apply(exit(20, A))

	idx.Apply(newSpan(5, B, true, P))
	idx.Apply(enter(50, B))
	idx.Apply(exit(150, B))

	d := Layout(idx, defaultCanvas(), View{})

	byID := map[wire.SpanId]Block{}
	for _, b := range d.Blocks {
		byID[b.SpanID] = b
	}
	require.Contains(t, byID, P)
	require.Contains(t, byID, A)
	require.Contains(t, byID, B)

	assert.Greater(t, byID[A].Rect.MinY, byID[P].Rect.MinY, "direct child painted below parent")
	require.NotEmpty(t, d.Connectors, "spawned child B should get a deferred-root connector")
}

// TestZoomPivotPreservesPointerPosition is the §8 zoom pivot property:
// after zooming, the screen x for the pointer's nanosecond position is
// unchanged.
func TestZoomPivotPreservesPointerPosition(t *testing.T) {
	canvas := Canvas{MinX: 0, MinY: 0, Width: 1000}
	minNs := 0.0
	panXInNs := 0.0
	canvasWidthNs := 10000.0
	pointerX := 400.0

	mouseNsBefore := minNs - panXInNs + canvasWidthNs*(pointerX-canvas.MinX)/canvas.Width
	xBefore := PointFromNs(canvas, minNs, panXInNs, canvasWidthNs, mouseNsBefore)
	require.InDelta(t, pointerX, xBefore, 1e-6)

	newWidth, newPan := ZoomAtPointer(canvas, minNs, panXInNs, canvasWidthNs, 2.0, pointerX)
	xAfter := PointFromNs(canvas, minNs, newPan, newWidth, mouseNsBefore)

	assert.True(t, approxEqual(pointerX, xAfter, 1e-6), "pointer's ns position must map back to the same x after zoom")
}

func TestMissingSpanErrorColorReservedAsPureRed(t *testing.T) {
	assert.Equal(t, Color{H: 0, S: 1, V: 1, A: 1}, ErrorColor)
}

func TestGridSpacingBoundsLineCount(t *testing.T) {
	spacing := gridSpacingNs(1_000_000, 800)
	maxLines := 800.0 / maxGridLinesDivisor
	assert.LessOrEqual(t, 1_000_000/spacing, maxLines)
}

func TestFormatMsChoosesMinimalDecimals(t *testing.T) {
	assert.Equal(t, "5", formatMs(5.0))
	assert.Equal(t, "5.5", formatMs(5.5))
	assert.Equal(t, "5.25", formatMs(5.25))
}

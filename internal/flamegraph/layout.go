package flamegraph

import (
	"container/heap"
	"math"
	"strings"

	"github.com/rerun-io/tracepipe/internal/trace"
	"github.com/rerun-io/tracepipe/internal/wire"
)

// PointFromNs maps a nanosecond timestamp to an x pixel coordinate:
// point_from_ns(ns) = canvas.min_x + canvas.width *
// (ns - min_ns + pan_x_in_ns) / canvas_width_ns.
func PointFromNs(canvas Canvas, minNs, panXInNs, canvasWidthNs, ns float64) float64 {
	if canvasWidthNs == 0 {
		return canvas.MinX
	}
	return canvas.MinX + canvas.Width*(ns-minNs+panXInNs)/canvasWidthNs
}

// rootItem is one entry in the root-selection priority queue: either a true
// root (hasParent false) or an indirect child deferred during painting,
// remembering the bottom-y of the parent block it was spawned from so a
// connector line can be drawn once it is eventually placed.
type rootItem struct {
	id            wire.SpanId
	startNs       int64
	hasParent     bool
	parentBottomY float64
}

type rootHeap []rootItem

func (h rootHeap) Len() int            { return len(h) }
func (h rootHeap) Less(i, j int) bool  { return h[i].startNs < h[j].startNs }
func (h rootHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rootHeap) Push(x interface{}) { *h = append(*h, x.(rootItem)) }
func (h *rootHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// estimateLifetime prefers the node's own lifetime bounds; falls back to
// its first/last interval endpoints; falls back further to the
// earliest/latest endpoint among its recursive children. Returns
// math.MaxInt64/MinInt64 sentinels when nothing is known at all.
func estimateLifetime(idx *trace.Index, id wire.SpanId) (minNs, maxNs int64) {
	minNs, maxNs = math.MaxInt64, math.MinInt64

	node, ok := idx.Node(id)
	if !ok {
		return minNs, maxNs
	}

	if node.Lifetime.HasMin {
		minNs = int64(node.Lifetime.Min)
	}
	if node.Lifetime.HasMax {
		maxNs = int64(node.Lifetime.Max)
	}

	if minNs == math.MaxInt64 {
		minNs = fallbackFromIntervals(node, true)
	}
	if maxNs == math.MinInt64 {
		maxNs = fallbackFromIntervals(node, false)
	}
	if minNs != math.MaxInt64 && maxNs != math.MinInt64 {
		return minNs, maxNs
	}

	for _, childID := range idx.Children(id) {
		childMin, childMax := estimateLifetime(idx, childID)
		if childMin < minNs {
			minNs = childMin
		}
		if childMax > maxNs {
			maxNs = childMax
		}
	}

	return minNs, maxNs
}

func fallbackFromIntervals(node trace.Node, wantMin bool) int64 {
	if wantMin {
		for _, iv := range node.Intervals {
			if iv.HasMin {
				return int64(iv.Min)
			}
		}
		return math.MaxInt64
	}
	for i := len(node.Intervals) - 1; i >= 0; i-- {
		if node.Intervals[i].HasMax {
			return int64(node.Intervals[i].Max)
		}
	}
	return math.MinInt64
}

// matchesFilter reports whether id's description contains filter
// case-insensitively. An empty filter matches everything.
func matchesFilter(idx *trace.Index, id wire.SpanId, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(idx.SpanDescription(id)), strings.ToLower(filter))
}

// Layout computes one frame's drawing primitives from idx and the caller's
// canvas/view state. It never mutates idx or view; all placement
// bookkeeping (the skyline, the root queue, per-frame bounding boxes) is
// local to this call.
func Layout(idx *trace.Index, canvas Canvas, view View) Drawing {
	minNs, maxNs, ok := idx.NsRange()
	if !ok {
		return Drawing{}
	}

	canvasWidthNs := view.CanvasWidthNs
	if canvasWidthNs <= 0 {
		canvasWidthNs = float64(maxNs - minNs)
		if canvasWidthNs <= 0 {
			canvasWidthNs = 1
		}
	}

	rectHeight := view.RectHeight
	if rectHeight <= 0 {
		rectHeight = DefaultRectHeight
	}

	pointFromNs := func(ns int64) float64 {
		return PointFromNs(canvas, float64(minNs), view.PanXInNs, canvasWidthNs, float64(ns))
	}

	queue := &rootHeap{}
	heap.Init(queue)
	for _, rootID := range idx.Roots() {
		rootMin, _ := estimateLifetime(idx, rootID)
		heap.Push(queue, rootItem{id: rootID, startNs: rootMin})
	}

	sky := &skyline{}
	var blocks []Block
	var connectors []Connector
	used := Rect{MinX: math.MaxFloat64, MinY: math.MaxFloat64, MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64}

	grow := func(r Rect) {
		if r.MinX < used.MinX {
			used.MinX = r.MinX
		}
		if r.MinY < used.MinY {
			used.MinY = r.MinY
		}
		if r.MaxX > used.MaxX {
			used.MaxX = r.MaxX
		}
		if r.MaxY > used.MaxY {
			used.MaxY = r.MaxY
		}
	}

	var paint func(id wire.SpanId, topY float64)
	paint = func(id wire.SpanId, topY float64) {
		estMin, estMax := estimateLifetime(idx, id)
		if estMin == math.MaxInt64 || estMax == math.MinInt64 {
			return
		}

		left := pointFromNs(estMin)
		right := pointFromNs(estMax)
		width := right - left

		matched := matchesFilter(idx, id, view.Filter)
		minWidth := MinWidth
		if view.Filter != "" && matched {
			minWidth *= 2
		}

		if width < CullWidth {
			return
		}

		rect := Rect{MinX: left, MinY: topY, MaxX: right, MaxY: topY + rectHeight}
		if width < minWidth {
			rect.MaxX = rect.MinX + minWidth
		}

		node, known := idx.Node(id)
		var col Color
		var label string
		missing := !known
		if known {
			col = ColorForCallsite(node.Span.CallsiteId)
			if _, csKnown := idx.Callsite(node.Span.CallsiteId); !csKnown {
				missing = true
			}
		}
		if missing {
			col = ErrorColor
			label = "Missing span"
			if known {
				label = "Missing callsite"
			}
		} else if width > LabelMinWidth {
			label = idx.SpanDescription(id)
		}

		alpha := col.A
		if view.Filter != "" && !matched {
			alpha *= FilterDimAlpha
		}
		col.A = alpha

		blocks = append(blocks, Block{SpanID: id, Rect: rect, Color: col, Label: label, Missing: missing})
		grow(rect)

		if !known {
			return
		}

		directChildren := idx.DirectChildrenOf(id)
		direct := make(map[wire.SpanId]struct{}, len(directChildren))
		for _, d := range directChildren {
			direct[d] = struct{}{}
		}

		cursor := topY + rectHeight
		for _, childID := range directChildren {
			paint(childID, cursor)
			cursor += rectHeight
		}

		for _, childID := range idx.Children(id) {
			if _, isDirect := direct[childID]; isDirect {
				continue
			}
			childMin, _ := estimateLifetime(idx, childID)
			heap.Push(queue, rootItem{id: childID, startNs: childMin, hasParent: true, parentBottomY: rect.MaxY})
		}
	}

	for queue.Len() > 0 {
		item := heap.Pop(queue).(rootItem)
		leftX := pointFromNs(item.startNs)
		_, estMax := estimateLifetime(idx, item.id)
		topY := sky.topYFor(leftX, math.Max(leftX+1, pointFromNs(estMax)), rectHeight)
		if item.hasParent {
			connectors = append(connectors, Connector{
				FromX: pointFromNs(item.startNs), FromY: item.parentBottomY,
				ToX: pointFromNs(item.startNs), ToY: topY,
			})
		}
		first := len(blocks)
		paint(item.id, topY)
		// Grow the skyline entry just recorded so it bounds every block
		// painted for this root, including its direct-child rows.
		placed := &sky.placed[len(sky.placed)-1]
		for _, blk := range blocks[first:] {
			placed.MaxX = math.Max(placed.MaxX, blk.Rect.MaxX)
			placed.MaxY = math.Max(placed.MaxY, blk.Rect.MaxY)
		}
	}

	gridLines := buildRuler(canvas, minNs, canvasWidthNs, view)

	if used.MaxX < used.MinX {
		used = Rect{}
	}

	return Drawing{Blocks: blocks, Connectors: connectors, GridLines: gridLines, UsedBounds: used}
}

func buildRuler(canvas Canvas, minNs wire.Time, canvasWidthNs float64, view View) []GridLine {
	if canvasWidthNs <= 0 {
		return nil
	}
	spacing := gridSpacingNs(canvasWidthNs, canvas.Width)

	globalFade := 0.3
	if view.Filter != "" {
		globalFade = 0.1
	}

	var lines []GridLine
	startNs := float64(minNs) - view.PanXInNs
	firstLine := math.Floor(startNs/spacing) * spacing
	for ns := firstLine; ns < startNs+canvasWidthNs; ns += spacing {
		tier, _ := gridAlphaTier(ns, spacing)
		alpha := tierAlpha(tier, globalFade)
		x := PointFromNs(canvas, float64(minNs), view.PanXInNs, canvasWidthNs, ns)

		var label string
		if tier >= 1 {
			label = formatMs(ns/1e6) + "ms"
		}
		lines = append(lines, GridLine{X: x, Alpha: alpha, Label: label})
	}
	return lines
}

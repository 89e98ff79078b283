// Package flamegraph turns a trace.Index snapshot and a view rectangle into
// a pure set of drawing primitives for a flame-graph. It is grounded on
// the timing/layout algorithm described for the live tracing viewer and,
// for callsite/span tree shape, on original_source/viewer/src/flamegraph.rs.
// Nothing in this package holds state across frames except the caller's
// View value: placement, culling, and colour are all recomputed from
// scratch every call, matching the "flame-graph layout is pure" design
// note.
package flamegraph

import (
	"github.com/rerun-io/tracepipe/internal/wire"
)

// Canvas describes the pixel rectangle the layout draws into.
type Canvas struct {
	MinX, MinY float64
	Width      float64
}

// View is the caller-owned interaction state that persists across frames:
// the horizontal time window, pan offset, active text filter, and row
// height. In-flight zoom/pan animation is kept separately in AnimationState.
type View struct {
	CanvasWidthNs float64 // 0 means "reset to full ns_range on this frame"
	PanXInNs      float64
	Filter        string
	RectHeight    float64 // pixel height of one span row; 0 uses DefaultRectHeight
}

const (
	// DefaultRectHeight is the pixel height of one painted span block.
	DefaultRectHeight = 16.0
	// RowSpacing is the vertical gap the skyline placer inserts between
	// stacked, time-overlapping root blocks.
	RowSpacing = 20.0
	// CullWidth is the pixel width below which a block is dropped
	// entirely rather than drawn.
	CullWidth = 0.5
	// MinWidth is the pixel width below which a block degenerates to a
	// thin vertical line instead of a filled rectangle.
	MinWidth = 1.0
	// LabelMinWidth is the pixel width above which a block's text label
	// is drawn.
	LabelMinWidth = 32.0
	// FilterDimAlpha is the opacity applied to blocks that do not match
	// an active filter.
	FilterDimAlpha = 0.075
)

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Intersects reports whether r and o overlap on a positive area (used by
// the placement non-overlap property test; touching edges don't count).
func (r Rect) Intersects(o Rect) bool {
	return r.MinX < o.MaxX && o.MinX < r.MaxX && r.MinY < o.MaxY && o.MinY < r.MaxY
}

// Color is a straight (non-premultiplied) HSVA colour in [0,1] components.
type Color struct {
	H, S, V, A float64
}

// ErrorColor is the reserved colour for "Missing callsite"/"Missing span"
// blocks, carried over from original_source's ERROR_COLOR (egui's pure
// red): the viewer colours spans with missing callsites in red.
var ErrorColor = Color{H: 0, S: 1, V: 1, A: 1}

// Block is one painted span rectangle.
type Block struct {
	SpanID  wire.SpanId
	Rect    Rect
	Color   Color
	Label   string
	Missing bool // true when the span or its callsite could not be resolved
}

// Connector is the dashed line drawn from a parent block's bottom-y to an
// indirect (spawned) child placed as its own deferred root.
type Connector struct {
	FromX, FromY float64
	ToX, ToY     float64
}

// GridLine is one vertical ruler line.
type GridLine struct {
	X       float64
	Alpha   float64
	Label   string // empty when this tier draws no label
}

// Drawing is the complete per-frame output of Layout: the caller rasterizes
// these primitives however it likes (immediate-mode UI, SVG, terminal...).
type Drawing struct {
	Blocks      []Block
	Connectors  []Connector
	GridLines   []GridLine
	UsedBounds  Rect
}

// Package trace incrementally reconstructs span lifetimes, intervals, and
// parent/child structure from a stream of decoded wire.Message records. It
// is grounded on original_source/viewer/src/span_tree.rs's SpanTree, and
// structured as a stateful builder (Index) plus a set of pure derived-query
// methods.
package trace

import (
	"log/slog"
	"math"
	"sync"

	"github.com/rerun-io/tracepipe/internal/wire"
)

// Interval is a time span with optionally-unknown endpoints. Min/Max are
// valid only when HasMin/HasMax are set, mirroring the wire format's
// distinction between "not yet known" and "zero".
type Interval struct {
	Min    wire.Time
	HasMin bool
	Max    wire.Time
	HasMax bool
}

// IsActiveAt reports whether t falls within the interval's known bounds. An
// interval with no bound on one side is open-ended on that side.
func (iv Interval) IsActiveAt(t wire.Time) bool {
	if iv.HasMin && t < iv.Min {
		return false
	}
	if iv.HasMax && iv.Max < t {
		return false
	}
	return true
}

// TimedEvent pairs a DataEvent with the log_time it arrived at.
type TimedEvent struct {
	Time  wire.Time
	Event wire.DataEvent
}

// Node is the running record for a single span: its defining Span record,
// an optional follows-from edge, its overall lifetime, the (possibly many)
// intervals during which it was entered, its direct children by id, and any
// data events attached to it.
type Node struct {
	Span     wire.Span
	Follows  wire.SpanId
	HasFollows bool

	Lifetime  Interval
	Intervals []Interval
	Children  map[wire.SpanId]struct{}
	Events    []TimedEvent
}

// IsActiveAt reports whether any interval of the node contains t.
func (n *Node) IsActiveAt(t wire.Time) bool {
	for _, iv := range n.Intervals {
		if iv.IsActiveAt(t) {
			return true
		}
	}
	return false
}

// Index is the running trace index for one topic: a pure accumulator driven
// by Apply, queried by the Span*/NsRange/IsDirectChildOf family below. The
// zero value is not usable; construct with NewIndex.
type Index struct {
	mu sync.RWMutex

	callsites    map[wire.CallsiteId]wire.Callsite
	nodes        map[wire.SpanId]*Node
	roots        map[wire.SpanId]struct{}
	orphanEvents []TimedEvent

	logger *slog.Logger
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{
		callsites: make(map[wire.CallsiteId]wire.Callsite),
		nodes:     make(map[wire.SpanId]*Node),
		roots:     make(map[wire.SpanId]struct{}),
		logger:    slog.Default().With("component", "trace-index"),
	}
}

// Apply folds one decoded Message into the index, applying the update rule
// for its variant. It is safe for concurrent use; callers typically invoke it
// from the single goroutine consuming a topic's subscription, but the
// derived queries may run concurrently from a rendering goroutine.
func (idx *Index) Apply(msg wire.Message) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t := msg.LogTime
	switch msg.Kind {
	case wire.MsgNewCallsite:
		idx.applyNewCallsite(msg.NewCallsite)
	case wire.MsgNewSpan:
		idx.applyNewSpan(t, msg.NewSpan)
	case wire.MsgEnterSpan:
		idx.applyEnterSpan(t, msg.SpanId)
	case wire.MsgExitSpan:
		idx.applyExitSpan(t, msg.SpanId)
	case wire.MsgDestroySpan:
		idx.applyDestroySpan(t, msg.SpanId)
	case wire.MsgSpanFollowsFrom:
		idx.applySpanFollowsFrom(msg.Follows)
	case wire.MsgDataEvent:
		idx.applyDataEvent(t, msg.DataEvent)
	default:
		idx.logger.Warn("unknown message kind, ignoring", "kind", msg.Kind)
	}
}

func (idx *Index) applyNewCallsite(c wire.Callsite) {
	if _, exists := idx.callsites[c.Id]; exists {
		idx.logger.Warn("duplicate callsite id, ignoring", "id", c.Id.HexString())
		return
	}
	idx.callsites[c.Id] = c
}

func (idx *Index) applyNewSpan(t wire.Time, s wire.Span) {
	if _, exists := idx.nodes[s.Id]; exists {
		idx.logger.Warn("reused span id, ignoring", "id", s.Id.HexString())
		return
	}
	idx.nodes[s.Id] = &Node{
		Span:     s,
		Lifetime: Interval{Min: t, HasMin: true},
		Children: make(map[wire.SpanId]struct{}),
	}

	if s.HasParent {
		if parent, ok := idx.nodes[s.ParentSpanId]; ok {
			parent.Children[s.Id] = struct{}{}
		} else {
			idx.logger.Warn("unknown parent span", "span", s.Id.HexString(), "parent", s.ParentSpanId.HexString())
		}
	} else {
		idx.roots[s.Id] = struct{}{}
	}
}

func (idx *Index) applyEnterSpan(t wire.Time, id wire.SpanId) {
	node, ok := idx.nodes[id]
	if !ok {
		idx.logger.Warn("opened unknown span", "span", id.HexString())
		return
	}
	node.Intervals = append(node.Intervals, Interval{Min: t, HasMin: true})
}

func (idx *Index) applyExitSpan(t wire.Time, id wire.SpanId) {
	node, ok := idx.nodes[id]
	if !ok {
		idx.logger.Warn("exited unknown span", "span", id.HexString())
		return
	}
	if n := len(node.Intervals); n > 0 && !node.Intervals[n-1].HasMax {
		node.Intervals[n-1].Max = t
		node.Intervals[n-1].HasMax = true
		return
	}
	idx.logger.Warn("exited span that was never opened", "span", id.HexString())
	node.Intervals = append(node.Intervals, Interval{Max: t, HasMax: true})
}

func (idx *Index) applyDestroySpan(t wire.Time, id wire.SpanId) {
	node, ok := idx.nodes[id]
	if !ok {
		idx.logger.Warn("destroying unknown span", "span", id.HexString())
		return
	}
	if node.Lifetime.HasMax {
		idx.logger.Warn("destroying a span twice", "span", id.HexString())
	}
	node.Lifetime.Max = t
	node.Lifetime.HasMax = true
}

func (idx *Index) applySpanFollowsFrom(f wire.SpanFollowsFrom) {
	node, ok := idx.nodes[f.Span]
	if !ok {
		idx.logger.Warn("follows-from on unknown span", "span", f.Span.HexString())
		return
	}
	if node.HasFollows {
		idx.logger.Warn("span follows multiple spans", "span", f.Span.HexString())
	}
	node.Follows = f.Follows
	node.HasFollows = true
}

func (idx *Index) applyDataEvent(t wire.Time, e wire.DataEvent) {
	if e.HasParent {
		if node, ok := idx.nodes[e.ParentSpanId]; ok {
			node.Events = append(node.Events, TimedEvent{Time: t, Event: e})
			return
		}
		idx.logger.Warn("event with unknown parent span", "parent", e.ParentSpanId.HexString())
	}
	idx.orphanEvents = append(idx.orphanEvents, TimedEvent{Time: t, Event: e})
}

// NsRange returns the minimum and maximum nanosecond time across every
// known interval endpoint and lifetime bound, and whether any such bound
// exists.
func (idx *Index) NsRange() (min, max wire.Time, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lo := int64(math.MaxInt64)
	hi := int64(math.MinInt64)
	observe := func(t wire.Time) {
		if int64(t) < lo {
			lo = int64(t)
		}
		if int64(t) > hi {
			hi = int64(t)
		}
	}

	for _, n := range idx.nodes {
		if n.Lifetime.HasMin {
			observe(n.Lifetime.Min)
		}
		if n.Lifetime.HasMax {
			observe(n.Lifetime.Max)
		}
		for _, iv := range n.Intervals {
			if iv.HasMin {
				observe(iv.Min)
			}
			if iv.HasMax {
				observe(iv.Max)
			}
		}
	}

	if lo > hi {
		return 0, 0, false
	}
	return wire.Time(lo), wire.Time(hi), true
}

// SpanName returns the callsite name for id's span, or the id's hex string
// if the span or its callsite is unknown.
func (idx *Index) SpanName(id wire.SpanId) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.spanNameLocked(id)
}

func (idx *Index) spanNameLocked(id wire.SpanId) string {
	node, ok := idx.nodes[id]
	if !ok {
		return id.HexString()
	}
	if cs, ok := idx.callsites[node.Span.CallsiteId]; ok {
		return cs.Name
	}
	return id.HexString()
}

// SpanDescription returns the span's name plus a "key=value, ..." rendering
// of its initial fields.
func (idx *Index) SpanDescription(id wire.SpanId) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	node, ok := idx.nodes[id]
	if !ok {
		return id.HexString()
	}
	name := idx.spanNameLocked(id)
	if len(node.Span.Fields) == 0 {
		return name
	}

	out := name + " "
	for i, f := range node.Span.Fields {
		if i > 0 {
			out += ", "
		}
		out += f.Name + "=" + f.Value.String()
	}
	return out
}

// SpanAncestry returns the chain of span names from root to id, joined by
// "➡".
func (idx *Index) SpanAncestry(id wire.SpanId) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ancestry := []string{idx.spanNameLocked(id)}
	current := id
	for {
		node, ok := idx.nodes[current]
		if !ok || !node.Span.HasParent {
			break
		}
		ancestry = append(ancestry, idx.spanNameLocked(node.Span.ParentSpanId))
		current = node.Span.ParentSpanId
	}

	out := ancestry[len(ancestry)-1]
	for i := len(ancestry) - 2; i >= 0; i-- {
		out += " ➡ " + ancestry[i]
	}
	return out
}

// IsDirectChildOf reports whether every interval endpoint of child falls
// within some active interval of parent: the child never crosses the
// parent's suspension boundaries.
func (idx *Index) IsDirectChildOf(child, parent wire.SpanId) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	childNode, ok := idx.nodes[child]
	if !ok {
		return false
	}
	parentNode, ok := idx.nodes[parent]
	if !ok {
		return false
	}
	return idx.isDirectChildOfLocked(childNode, parentNode)
}

func (idx *Index) isDirectChildOfLocked(child, parent *Node) bool {
	for _, iv := range child.Intervals {
		if iv.HasMin && !parent.IsActiveAt(iv.Min) {
			return false
		}
		if iv.HasMax && !parent.IsActiveAt(iv.Max) {
			return false
		}
	}
	return true
}

// DirectChildrenOf returns the subset of node's children that satisfy
// IsDirectChildOf against node.
func (idx *Index) DirectChildrenOf(id wire.SpanId) []wire.SpanId {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	node, ok := idx.nodes[id]
	if !ok {
		return nil
	}

	var out []wire.SpanId
	for childID := range node.Children {
		child, ok := idx.nodes[childID]
		if !ok {
			continue
		}
		if idx.isDirectChildOfLocked(child, node) {
			out = append(out, childID)
		}
	}
	return out
}

// Roots returns the set of span ids whose parent_span_id was unset at
// creation.
func (idx *Index) Roots() []wire.SpanId {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]wire.SpanId, 0, len(idx.roots))
	for id := range idx.roots {
		out = append(out, id)
	}
	return out
}

// Node returns a copy of the node record for id, for callers (e.g. the
// flame-graph layout) that need read access to its full state.
func (idx *Index) Node(id wire.SpanId) (Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	node, ok := idx.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// Callsite returns a copy of the callsite record for id.
func (idx *Index) Callsite(id wire.CallsiteId) (wire.Callsite, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	cs, ok := idx.callsites[id]
	return cs, ok
}

// Children returns the unfiltered child-id set recorded for id (both direct
// and spawned/indirect children).
func (idx *Index) Children(id wire.SpanId) []wire.SpanId {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	node, ok := idx.nodes[id]
	if !ok {
		return nil
	}
	out := make([]wire.SpanId, 0, len(node.Children))
	for c := range node.Children {
		out = append(out, c)
	}
	return out
}

// Follows returns the span id a SpanFollowsFrom edge recorded for id, if
// any. This is kept distinct from Children/DirectChildrenOf: a follows-from
// edge records causality ("this span was spawned from that one") but is not
// a parent_span_id-derived child, so layout never paints it as one.
func (idx *Index) Follows(id wire.SpanId) (wire.SpanId, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	node, ok := idx.nodes[id]
	if !ok || !node.HasFollows {
		return 0, false
	}
	return node.Follows, true
}

package flamegraph

// skyline keeps the axis-aligned bounding boxes of already-placed root
// blocks and assigns each new root a top-y that clears every previously
// placed block whose right edge lies to the right of the new block's
// left-x. This is a small, repo-local replacement for a generic 2D
// bin-packer: the only query it ever needs is "highest floor under this
// x-range so far", and a linear scan over placed blocks is cheap at the
// span counts a flame-graph frame realistically holds.
type skyline struct {
	placed []Rect
}

// topYFor returns the y-coordinate at which a block whose left edge is
// leftX may be placed without overlapping any previously placed block,
// then records the new block's bounds for subsequent queries. rightX is
// used only for the recorded bounds; the placement decision depends only
// on leftX and each existing block's right edge.
func (s *skyline) topYFor(leftX, rightX, height float64) float64 {
	topY := 0.0
	for _, r := range s.placed {
		if r.MaxX > leftX {
			candidate := r.MaxY + RowSpacing
			if candidate > topY {
				topY = candidate
			}
		}
	}
	s.placed = append(s.placed, Rect{MinX: leftX, MinY: topY, MaxX: rightX, MaxY: topY + height})
	return topY
}

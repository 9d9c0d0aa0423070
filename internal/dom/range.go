package dom

// Point is a boundary point. Inside a text node Offset counts runes; inside an
// element it is a child index, as in the DOM.
type Point struct {
	Node   NodeID
	Offset int
}

// Range spans two boundary points, Start never after End.
type Range struct {
	Start Point
	End   Point
}

// Collapsed reports whether the range is empty.
func (r Range) Collapsed() bool {
	return r.Start == r.End
}

// position maps a point onto document order. A point inside text node n sorts
// as (n, offset); a point between children sorts just before the next node.
func (d *Document) position(p Point) (NodeID, int) {
	if d.IsText(p.Node) {
		return p.Node, p.Offset
	}
	return d.gap(p), -1
}

// gap returns the first node that follows an element boundary point.
func (d *Document) gap(p Point) NodeID {
	children := d.Children(p.Node)
	if p.Offset >= 0 && p.Offset < len(children) {
		return children[p.Offset]
	}
	if !d.Valid(p.Node) {
		return NodeID(len(d.nodes))
	}
	return d.last[p.Node] + 1
}

// Compare orders two points: -1 if a is before b, 0 if equal, 1 if after.
func (d *Document) Compare(a, b Point) int {
	an, ao := d.position(a)
	bn, bo := d.position(b)
	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	case ao < bo:
		return -1
	case ao > bo:
		return 1
	}
	return 0
}

// NewRange builds a range from two points in either order, the way an anchor
// and a focus describe a drag in any direction.
func (d *Document) NewRange(anchor, focus Point) Range {
	if d.Compare(anchor, focus) > 0 {
		anchor, focus = focus, anchor
	}
	return Range{Start: anchor, End: focus}
}

// bounds returns the half-open span of node IDs a range touches.
func (d *Document) bounds(r Range) (from, to NodeID) {
	if d.IsText(r.Start.Node) {
		from = r.Start.Node
	} else {
		from = d.gap(r.Start)
	}
	if d.IsText(r.End.Node) {
		to = r.End.Node + 1
	} else {
		to = d.gap(r.End)
	}
	return from, to
}

// Intersects reports whether a text node overlaps the range. Boundary text
// nodes intersect even when the covered substring is empty.
func (d *Document) Intersects(r Range, id NodeID) bool {
	from, to := d.bounds(r)
	return from <= id && id < to
}

// TextNodes returns, in document order, the non-empty text nodes that intersect
// r and pass accept. A nil accept takes every node.
func (d *Document) TextNodes(r Range, accept func(NodeID) bool) []NodeID {
	from, to := d.bounds(r)
	if from < 0 {
		from = 0
	}
	if int(to) > len(d.nodes) {
		to = NodeID(len(d.nodes))
	}
	var out []NodeID
	for id := from; id < to; id++ {
		if !d.IsText(id) || d.nodes[id].Data == "" {
			continue
		}
		if accept != nil && !accept(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Selection is the ambient, platform-side selection: at most one live range.
// Hosts set it from mouse drags or keyboard selection; the indexer reads and
// clears it.
type Selection struct {
	ranges []Range
}

// AddRange replaces the active range. Only one range is supported.
func (s *Selection) AddRange(r Range) {
	s.ranges = []Range{r}
}

// RemoveAllRanges clears the selection.
func (s *Selection) RemoveAllRanges() {
	s.ranges = nil
}

// RangeCount returns the number of ranges.
func (s *Selection) RangeCount() int {
	if s == nil {
		return 0
	}
	return len(s.ranges)
}

// RangeAt returns range i.
func (s *Selection) RangeAt(i int) Range {
	return s.ranges[i]
}

// IsCollapsed reports whether there is nothing selected.
func (s *Selection) IsCollapsed() bool {
	if s.RangeCount() == 0 {
		return true
	}
	return s.ranges[0].Collapsed()
}

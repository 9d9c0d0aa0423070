package render

import (
	"math"

	"github.com/mattn/go-runewidth"

	"github.com/metcalfc/folio/internal/dom"
)

// MinWidth is the narrowest column a layout wraps to.
const MinWidth = 8

// Row is one display line. Text rows cover runes [Start, End) of a text
// node; other rows (empty lines, page gaps) only carry an Anchor.
type Row struct {
	Page   int
	Node   dom.NodeID
	Start  int
	End    int
	Text   string
	Chrome bool
	Anchor dom.Point
}

type pageSpan struct {
	number      int
	first, last int // rows [first, last)
}

// Layout is a page tree wrapped to a column width. Zooming in narrows the
// column so the same text takes more rows, the way enlarged text reflows in a
// fixed viewport. The tree itself is untouched, so marks survive a relayout.
type Layout struct {
	Width int
	Scale float64
	Rows  []Row

	pages  []pageSpan
	byPage map[int]int
}

// NewLayout wraps doc at baseWidth/scale columns.
func NewLayout(doc *dom.Document, baseWidth int, scale float64) *Layout {
	if scale <= 0 {
		scale = 1
	}
	width := int(math.Round(float64(baseWidth) / scale))
	if width < MinWidth {
		width = MinWidth
	}

	l := &Layout{Width: width, Scale: scale, byPage: make(map[int]int)}
	for _, container := range doc.PageContainers() {
		num, _ := doc.PageNumber(container)
		span := pageSpan{number: num, first: len(l.Rows)}

		for id := container + 1; id <= doc.LastDescendant(container); id++ {
			switch {
			case doc.IsText(id):
				l.addText(doc, num, id)
			case doc.IsElement(id) && doc.InTextLayer(id) && len(doc.Children(id)) == 0:
				// Empty line.
				l.Rows = append(l.Rows, Row{
					Page:   num,
					Node:   id,
					Anchor: dom.Point{Node: id, Offset: 0},
				})
			}
		}
		span.last = len(l.Rows)

		l.Rows = append(l.Rows, Row{
			Page:   num,
			Node:   container,
			Chrome: true,
			Anchor: dom.Point{Node: container, Offset: len(doc.Children(container))},
		})

		if _, dup := l.byPage[num]; !dup {
			l.byPage[num] = len(l.pages)
		}
		l.pages = append(l.pages, span)
	}
	return l
}

func (l *Layout) addText(doc *dom.Document, page int, id dom.NodeID) {
	chrome := !doc.InTextLayer(id)
	runes := []rune(doc.Text(id))
	for _, seg := range wrap(runes, l.Width) {
		l.Rows = append(l.Rows, Row{
			Page:   page,
			Node:   id,
			Start:  seg[0],
			End:    seg[1],
			Text:   string(runes[seg[0]:seg[1]]),
			Chrome: chrome,
			Anchor: dom.Point{Node: id, Offset: seg[0]},
		})
	}
}

// wrap splits runes into segments no wider than width display cells,
// breaking after the last space when one is available.
func wrap(runes []rune, width int) [][2]int {
	if len(runes) == 0 {
		return [][2]int{{0, 0}}
	}
	var out [][2]int
	start := 0
	for start < len(runes) {
		w, end, lastSpace := 0, start, -1
		for end < len(runes) {
			rw := runewidth.RuneWidth(runes[end])
			if w+rw > width && end > start {
				break
			}
			if runes[end] == ' ' {
				lastSpace = end
			}
			w += rw
			end++
		}
		if end < len(runes) && lastSpace >= start && lastSpace+1 < end {
			end = lastSpace + 1
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

// PageCount returns the number of laid out pages.
func (l *Layout) PageCount() int { return len(l.pages) }

// PageTop returns the first row of page n.
func (l *Layout) PageTop(n int) (int, bool) {
	i, ok := l.byPage[n]
	if !ok {
		return 0, false
	}
	return l.pages[i].first, true
}

// PageCenters returns the vertical center of every page, in rows, in page
// order.
func (l *Layout) PageCenters() []float64 {
	centers := make([]float64, len(l.pages))
	for i, p := range l.pages {
		centers[i] = float64(p.first+p.last) / 2
	}
	return centers
}

// PointAt maps a display cell to a boundary point in the tree.
func (l *Layout) PointAt(row, col int) (dom.Point, bool) {
	if row < 0 || row >= len(l.Rows) {
		return dom.Point{}, false
	}
	r := l.Rows[row]
	if r.End == r.Start {
		return r.Anchor, true
	}
	offset, w := 0, 0
	for _, c := range r.Text {
		w += runewidth.RuneWidth(c)
		if w > col {
			break
		}
		offset++
	}
	return dom.Point{Node: r.Node, Offset: r.Start + offset}, true
}

// Range maps two display cells, in either order, to a range that includes the
// rune under both cells.
func (l *Layout) Range(doc *dom.Document, anchorRow, anchorCol, focusRow, focusCol int) (dom.Range, bool) {
	if focusRow < anchorRow || (focusRow == anchorRow && focusCol < anchorCol) {
		anchorRow, anchorCol, focusRow, focusCol = focusRow, focusCol, anchorRow, anchorCol
	}
	start, ok := l.PointAt(anchorRow, anchorCol)
	if !ok {
		return dom.Range{}, false
	}
	end, ok := l.PointAt(focusRow, focusCol)
	if !ok {
		return dom.Range{}, false
	}
	if doc.IsText(end.Node) && end.Offset < l.Rows[focusRow].End {
		end.Offset++
	}
	return doc.NewRange(start, end), true
}

// Package selection turns the ambient text selection over a rendered page tree
// into page-attributed selection records, and marks the selected elements so
// hosts can highlight them.
//
// A record goes Uncaptured -> Captured -> Removed. Only captured records exist
// in the Indexer; removing one undoes its marks before the record is dropped.
// Marks are ID-scoped: an element shared by overlapping selections keeps its
// highlight until the last of them is removed.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metcalfc/folio/internal/dom"
)

const (
	// AttrSelectionIDs holds the comma-separated IDs of the selections
	// covering an element.
	AttrSelectionIDs = "data-selection-ids"
	// ClassHighlighted is set on every element with at least one selection.
	ClassHighlighted = "text-selection-highlighted"
	// IDPrefix prefixes every selection ID.
	IDPrefix = "selection-"
)

var (
	// ErrNoSelection is returned when there is nothing selected.
	ErrNoSelection = errors.New("no selection")
	// ErrNoNodes is returned when the selection holds no page text, e.g. a
	// drag over the page header only.
	ErrNoNodes = errors.New("no nodes in selection")
)

// SelectionNode is the part of a selection inside one text node.
type SelectionNode struct {
	PageNumber int
	Node       dom.NodeID // owned by the document, not by the selection
	Text       string
}

// TextSelection is a captured selection.
type TextSelection struct {
	ID    string
	Text  string
	Nodes []SelectionNode
}

// Pages returns the distinct pages the selection touches, in document order.
func (s *TextSelection) Pages() []int {
	var pages []int
	seen := make(map[int]bool)
	for _, n := range s.Nodes {
		if !seen[n.PageNumber] {
			seen[n.PageNumber] = true
			pages = append(pages, n.PageNumber)
		}
	}
	return pages
}

// Indexer owns the captured selections of one document. It is not safe for
// concurrent use; hosts call it from their event loop.
type Indexer struct {
	doc        *dom.Document
	selections map[string]*TextSelection
	order      []string
	lastID     int
	log        *slog.Logger
}

// New returns an Indexer over doc.
func New(doc *dom.Document, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		doc:        doc,
		selections: make(map[string]*TextSelection),
		log:        logger,
	}
}

// Reset removes every selection from the current document and switches to
// doc, e.g. after a reload. IDs keep counting up.
func (ix *Indexer) Reset(doc *dom.Document) {
	ix.ClearAllSelections()
	ix.doc = doc
}

// CreateSelection captures the first range of sel. Text nodes outside a
// page's text layer are skipped. On success the selected elements are marked,
// sel is cleared and onCaptured, if set, receives the record.
func (ix *Indexer) CreateSelection(sel *dom.Selection, onCaptured func(*TextSelection)) (*TextSelection, error) {
	if sel.IsCollapsed() {
		ix.log.Debug("nothing to capture", "reason", ErrNoSelection)
		return nil, ErrNoSelection
	}
	r := sel.RangeAt(0)

	ids := ix.doc.TextNodes(r, ix.doc.InTextLayer)
	if len(ids) == 0 {
		ix.log.Debug("nothing to capture", "reason", ErrNoNodes)
		return nil, ErrNoNodes
	}

	id := IDPrefix + strconv.Itoa(ix.lastID+1)
	ts := &TextSelection{ID: id, Nodes: make([]SelectionNode, 0, len(ids))}

	var text strings.Builder
	for _, n := range ids {
		page, ok := ix.doc.PageOf(n)
		if !ok {
			page = 1
		}
		part := ix.substring(r, n)
		ts.Nodes = append(ts.Nodes, SelectionNode{PageNumber: page, Node: n, Text: part})
		text.WriteString(part)
		ix.mark(ix.doc.ParentElement(n), id)
	}
	ts.Text = text.String()
	sel.RemoveAllRanges()

	ix.lastID++
	ix.selections[id] = ts
	ix.order = append(ix.order, id)
	ix.log.Debug("captured selection", "id", id, "nodes", len(ts.Nodes), "pages", ts.Pages())

	if onCaptured != nil {
		onCaptured(ts)
	}
	return ts, nil
}

// substring returns the runes of text node n covered by r.
func (ix *Indexer) substring(r dom.Range, n dom.NodeID) string {
	runes := []rune(ix.doc.Text(n))
	start, end := 0, len(runes)
	if r.Start.Node == n {
		start = clamp(r.Start.Offset, 0, len(runes))
	}
	if r.End.Node == n {
		end = clamp(r.End.Offset, 0, len(runes))
	}
	if end <= start {
		return ""
	}
	return string(runes[start:end])
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// mark adds id to el's selection list once and highlights it.
func (ix *Indexer) mark(el dom.NodeID, id string) {
	if el == dom.NoNode {
		return
	}
	ids := ix.idsOn(el)
	for _, existing := range ids {
		if existing == id {
			return
		}
	}
	ids = append(ids, id)
	ix.doc.SetAttr(el, AttrSelectionIDs, strings.Join(ids, ","))
	ix.doc.AddClass(el, ClassHighlighted)
}

// unmark removes id from el's selection list. The attribute and the highlight
// go once the list is empty.
func (ix *Indexer) unmark(el dom.NodeID, id string) {
	if el == dom.NoNode {
		return
	}
	var keep []string
	for _, existing := range ix.idsOn(el) {
		if existing != id {
			keep = append(keep, existing)
		}
	}
	if len(keep) == 0 {
		ix.doc.RemoveAttr(el, AttrSelectionIDs)
		ix.doc.RemoveClass(el, ClassHighlighted)
		return
	}
	ix.doc.SetAttr(el, AttrSelectionIDs, strings.Join(keep, ","))
}

func (ix *Indexer) idsOn(el dom.NodeID) []string {
	v, ok := ix.doc.Attr(el, AttrSelectionIDs)
	if !ok {
		return nil
	}
	var ids []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

// RemoveSelection unmarks and drops selection id. It reports false for an
// unknown id.
func (ix *Indexer) RemoveSelection(id string) bool {
	ts, ok := ix.selections[id]
	if !ok {
		return false
	}
	for _, n := range ts.Nodes {
		ix.unmark(ix.doc.ParentElement(n.Node), id)
	}
	delete(ix.selections, id)
	for i, o := range ix.order {
		if o == id {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
	ix.log.Debug("removed selection", "id", id)
	return true
}

// ClearAllSelections removes every selection, one ID at a time.
func (ix *Indexer) ClearAllSelections() {
	for _, id := range append([]string(nil), ix.order...) {
		ix.RemoveSelection(id)
	}
}

// Selection returns the selection with the given id.
func (ix *Indexer) Selection(id string) (*TextSelection, bool) {
	ts, ok := ix.selections[id]
	return ts, ok
}

// Selections returns every selection in capture order.
func (ix *Indexer) Selections() []*TextSelection {
	out := make([]*TextSelection, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.selections[id])
	}
	return out
}

// Last returns the most recent selection.
func (ix *Indexer) Last() (*TextSelection, bool) {
	if len(ix.order) == 0 {
		return nil, false
	}
	return ix.selections[ix.order[len(ix.order)-1]], true
}

// Len returns the number of captured selections.
func (ix *Indexer) Len() int { return len(ix.selections) }

// SelectionsAt returns the IDs marked on node, or on its element for a text
// node.
func (ix *Indexer) SelectionsAt(node dom.NodeID) []string {
	if ix.doc.IsText(node) {
		node = ix.doc.ParentElement(node)
	}
	if node == dom.NoNode {
		return nil
	}
	return ix.idsOn(node)
}

// String implements fmt.Stringer for log output.
func (s *TextSelection) String() string {
	return fmt.Sprintf("%s (%d nodes, pages %v)", s.ID, len(s.Nodes), s.Pages())
}

package selection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/folio/internal/dom"
)

const fixture = `<div id="page-1" class="page"><div class="pageHeader">Page 1</div><div class="textLayer"><span>Hello world</span><span>second line</span></div></div>` +
	`<div id="page-2" class="page"><div class="textLayer"><span>third line</span><span>mixed <b>bold</b> tail</span></div><div class="annotationLayer"><span>note</span></div></div>` +
	`<div id="page-z" class="page"><div class="textLayer"><span>naïve café</span></div></div>`

func setup(t *testing.T) (*dom.Document, *Indexer) {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	return doc, New(doc, nil)
}

func textNode(t *testing.T, doc *dom.Document, s string) dom.NodeID {
	t.Helper()
	for i := 0; i < doc.Len(); i++ {
		if doc.IsText(dom.NodeID(i)) && doc.Text(dom.NodeID(i)) == s {
			return dom.NodeID(i)
		}
	}
	t.Fatalf("text node %q not found", s)
	return dom.NoNode
}

func selectText(doc *dom.Document, from dom.NodeID, fromOff int, to dom.NodeID, toOff int) *dom.Selection {
	sel := &dom.Selection{}
	sel.AddRange(doc.NewRange(dom.Point{Node: from, Offset: fromOff}, dom.Point{Node: to, Offset: toOff}))
	return sel
}

func TestCreateSelectionEmpty(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")

	_, err := ix.CreateSelection(nil, nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = ix.CreateSelection(&dom.Selection{}, nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = ix.CreateSelection(selectText(doc, hello, 3, hello, 3), nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, doc.WithAttr(AttrSelectionIDs))
}

func TestCreateSelectionOutsideTextLayer(t *testing.T) {
	doc, ix := setup(t)
	header := textNode(t, doc, "Page 1")
	note := textNode(t, doc, "note")

	sel := selectText(doc, header, 0, header, 4)
	_, err := ix.CreateSelection(sel, nil)
	assert.ErrorIs(t, err, ErrNoNodes)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 1, sel.RangeCount(), "a failed capture leaves the selection alone")

	_, err = ix.CreateSelection(selectText(doc, note, 0, note, 4), nil)
	assert.ErrorIs(t, err, ErrNoNodes)
	assert.Empty(t, doc.WithAttr(AttrSelectionIDs))
}

func TestCreateSelectionAcrossPages(t *testing.T) {
	doc, ix := setup(t)
	header := textNode(t, doc, "Page 1")
	hello := textNode(t, doc, "Hello world")
	second := textNode(t, doc, "second line")
	third := textNode(t, doc, "third line")

	var captured *TextSelection
	sel := selectText(doc, third, 5, hello, 6) // dragged backwards
	ts, err := ix.CreateSelection(sel, func(s *TextSelection) { captured = s })
	require.NoError(t, err)

	assert.Equal(t, "selection-1", ts.ID)
	assert.Same(t, ts, captured)
	assert.Equal(t, "worldsecond linethird", ts.Text)
	assert.Equal(t, []SelectionNode{
		{PageNumber: 1, Node: hello, Text: "world"},
		{PageNumber: 1, Node: second, Text: "second line"},
		{PageNumber: 2, Node: third, Text: "third"},
	}, ts.Nodes)
	assert.Equal(t, []int{1, 2}, ts.Pages())

	assert.Equal(t, 0, sel.RangeCount(), "ambient selection is cleared")
	assert.Equal(t, 1, ix.Len())

	for _, n := range []dom.NodeID{hello, second, third} {
		el := doc.ParentElement(n)
		ids, ok := doc.Attr(el, AttrSelectionIDs)
		assert.True(t, ok)
		assert.Equal(t, "selection-1", ids)
		assert.True(t, doc.HasClass(el, ClassHighlighted))
	}
	assert.False(t, doc.HasClass(doc.ParentElement(header), ClassHighlighted))
}

func TestCreateSelectionWithinOneNode(t *testing.T) {
	doc, ix := setup(t)
	cafe := textNode(t, doc, "naïve café")

	ts, err := ix.CreateSelection(selectText(doc, cafe, 2, cafe, 7), nil)
	require.NoError(t, err)
	assert.Equal(t, "ïve c", ts.Text)
	require.Len(t, ts.Nodes, 1)
	assert.Equal(t, 1, ts.Nodes[0].PageNumber, "unparsable page id resolves to page 1")
}

func TestCreateSelectionDeduplicatesMarks(t *testing.T) {
	doc, ix := setup(t)
	container, ok := doc.PageContainer(2)
	require.True(t, ok)
	layer := doc.Children(container)[0]
	require.True(t, doc.IsTextLayer(layer))

	sel := &dom.Selection{}
	sel.AddRange(dom.Range{
		Start: dom.Point{Node: layer, Offset: 0},
		End:   dom.Point{Node: layer, Offset: len(doc.Children(layer))},
	})
	ts, err := ix.CreateSelection(sel, nil)
	require.NoError(t, err)
	assert.Equal(t, "third linemixed bold tail", ts.Text)
	require.Len(t, ts.Nodes, 4)

	mixed := textNode(t, doc, "mixed ")
	ids, _ := doc.Attr(doc.ParentElement(mixed), AttrSelectionIDs)
	assert.Equal(t, "selection-1", ids, "two text nodes of one span mark it once")
}

func TestRemoveSelectionTwice(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	third := textNode(t, doc, "third line")

	ts, err := ix.CreateSelection(selectText(doc, hello, 0, third, 3), nil)
	require.NoError(t, err)
	require.NotEmpty(t, doc.WithAttr(AttrSelectionIDs))

	assert.True(t, ix.RemoveSelection(ts.ID))
	assert.Empty(t, doc.WithAttr(AttrSelectionIDs))
	for _, n := range ts.Nodes {
		el := doc.ParentElement(n.Node)
		assert.False(t, doc.HasClass(el, ClassHighlighted))
		_, hasClass := doc.Attr(el, "class")
		assert.False(t, hasClass, "empty class attribute is dropped")
	}
	_, ok := ix.Selection(ts.ID)
	assert.False(t, ok)

	assert.False(t, ix.RemoveSelection(ts.ID))
	assert.False(t, ix.RemoveSelection("selection-99"))
}

func TestOverlappingSelections(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	second := textNode(t, doc, "second line")

	a, err := ix.CreateSelection(selectText(doc, hello, 0, second, 6), nil)
	require.NoError(t, err)
	b, err := ix.CreateSelection(selectText(doc, second, 0, second, 11), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{a.ID, b.ID}, ix.SelectionsAt(second))
	assert.Equal(t, []string{a.ID}, ix.SelectionsAt(doc.ParentElement(hello)))

	require.True(t, ix.RemoveSelection(a.ID))
	assert.Empty(t, ix.SelectionsAt(hello))
	assert.False(t, doc.HasClass(doc.ParentElement(hello), ClassHighlighted))
	assert.Equal(t, []string{b.ID}, ix.SelectionsAt(second))
	assert.True(t, doc.HasClass(doc.ParentElement(second), ClassHighlighted), "shared element keeps b's mark")
}

func TestClearAllSelections(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	second := textNode(t, doc, "second line")
	third := textNode(t, doc, "third line")
	cafe := textNode(t, doc, "naïve café")

	for _, sel := range []*dom.Selection{
		selectText(doc, hello, 0, third, 4),
		selectText(doc, second, 2, second, 8),
		selectText(doc, third, 0, cafe, 3),
	} {
		_, err := ix.CreateSelection(sel, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, ix.Len())

	ix.ClearAllSelections()
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Selections())
	assert.Empty(t, doc.WithAttr(AttrSelectionIDs))
	for i := 0; i < doc.Len(); i++ {
		assert.False(t, doc.HasClass(dom.NodeID(i), ClassHighlighted))
	}
}

func TestSelectionIDsNeverReused(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	header := textNode(t, doc, "Page 1")

	var ids []string
	for i := 0; i < 3; i++ {
		ts, err := ix.CreateSelection(selectText(doc, hello, 0, hello, 5), nil)
		require.NoError(t, err)
		ids = append(ids, ts.ID)
		require.True(t, ix.RemoveSelection(ts.ID))

		// Failed captures do not consume an ID.
		_, err = ix.CreateSelection(selectText(doc, header, 0, header, 2), nil)
		require.ErrorIs(t, err, ErrNoNodes)
	}
	assert.Equal(t, []string{"selection-1", "selection-2", "selection-3"}, ids)
}

func TestQueries(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	third := textNode(t, doc, "third line")

	_, ok := ix.Last()
	assert.False(t, ok)

	a, err := ix.CreateSelection(selectText(doc, hello, 0, hello, 5), nil)
	require.NoError(t, err)
	b, err := ix.CreateSelection(selectText(doc, third, 0, third, 5), nil)
	require.NoError(t, err)

	got, ok := ix.Selection(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, []*TextSelection{a, b}, ix.Selections())

	last, ok := ix.Last()
	require.True(t, ok)
	assert.Same(t, b, last)
	assert.Equal(t, "selection-2 (1 nodes, pages [2])", b.String())
}

func TestReset(t *testing.T) {
	doc, ix := setup(t)
	hello := textNode(t, doc, "Hello world")
	_, err := ix.CreateSelection(selectText(doc, hello, 0, hello, 5), nil)
	require.NoError(t, err)

	fresh, err := dom.Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	ix.Reset(fresh)

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, doc.WithAttr(AttrSelectionIDs), "old tree is unmarked")

	n := textNode(t, fresh, "Hello world")
	ts, err := ix.CreateSelection(selectText(fresh, n, 0, n, 5), nil)
	require.NoError(t, err)
	assert.Equal(t, "selection-2", ts.ID)
	assert.NotEmpty(t, fresh.WithAttr(AttrSelectionIDs))
}

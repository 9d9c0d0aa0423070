// Package render turns loaded pages into the page-container tree the viewer
// selects from, and lays that tree out into display rows at a zoom scale.
package render

import (
	"fmt"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/metcalfc/folio/internal/dom"
	"github.com/metcalfc/folio/internal/reader"
)

// Class names of the layers inside a page container.
const (
	ClassPage            = "page"
	ClassPageHeader      = "pageHeader"
	ClassAnnotationLayer = "annotationLayer"
	ClassAnnotation      = "annotation"
)

// Build renders a document as one page container per page:
//
//	<div id="page-N" class="page">
//	  <div class="pageHeader">...</div>
//	  <div class="textLayer"><span>line</span>...</div>
//	  <div class="annotationLayer">...</div>
//	</div>
//
// Only the text layer holds selectable text. The header and the annotation
// layer (TOC entries that start on the page) are chrome.
func Build(doc *reader.Document, textLayerClass string) *dom.Document {
	if textLayerClass == "" {
		textLayerClass = dom.DefaultTextLayerClass
	}

	root := &html.Node{Type: html.DocumentNode}
	htmlEl := element(atom.Html)
	body := element(atom.Body)
	root.AppendChild(htmlEl)
	htmlEl.AppendChild(body)

	tocByPage := make(map[int][]reader.TOCEntry)
	for _, e := range doc.TOC {
		tocByPage[e.Page] = append(tocByPage[e.Page], e)
	}

	total := len(doc.Pages)
	for i, p := range doc.Pages {
		num := i + 1
		page := element(atom.Div,
			html.Attribute{Key: "id", Val: dom.PageIDPrefix + strconv.Itoa(num)},
			html.Attribute{Key: "class", Val: ClassPage})

		header := element(atom.Div, html.Attribute{Key: "class", Val: ClassPageHeader})
		header.AppendChild(text(pageTitle(doc.Title, num, total)))
		page.AppendChild(header)

		layer := element(atom.Div, html.Attribute{Key: "class", Val: textLayerClass})
		for _, line := range p.Lines {
			span := element(atom.Span)
			if line != "" {
				span.AppendChild(text(line))
			}
			layer.AppendChild(span)
		}
		page.AppendChild(layer)

		annotations := element(atom.Div, html.Attribute{Key: "class", Val: ClassAnnotationLayer})
		for _, e := range tocByPage[num] {
			a := element(atom.Div, html.Attribute{Key: "class", Val: ClassAnnotation})
			a.AppendChild(text("§ " + e.Title))
			annotations.AppendChild(a)
		}
		page.AppendChild(annotations)

		body.AppendChild(page)
	}

	return dom.New(root, dom.WithTextLayerClass(textLayerClass))
}

func pageTitle(title string, n, total int) string {
	if title == "" {
		return fmt.Sprintf("page %d of %d", n, total)
	}
	return fmt.Sprintf("%s · page %d of %d", title, n, total)
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// PageTextRange returns a range covering the whole text layer of page n.
func PageTextRange(doc *dom.Document, n int) (dom.Range, bool) {
	container, ok := doc.PageContainer(n)
	if !ok {
		return dom.Range{}, false
	}
	for _, c := range doc.Children(container) {
		if doc.IsTextLayer(c) {
			return dom.Range{
				Start: dom.Point{Node: c, Offset: 0},
				End:   dom.Point{Node: c, Offset: len(doc.Children(c))},
			}, true
		}
	}
	return dom.Range{}, false
}

// Package dom indexes a rendered page tree for text selection.
//
// A Document wraps a golang.org/x/net/html tree owned by the renderer. It hands
// out opaque NodeIDs (document order) and precomputes the lookup tables the
// selection indexer needs: which page container owns a node and whether a node
// sits inside a text layer. Queries never walk the live tree.
package dom

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// NodeID identifies a node of a Document. IDs follow document order.
type NodeID int

// NoNode is returned when a lookup has no answer.
const NoNode NodeID = -1

const (
	// PageIDPrefix prefixes the id attribute of every page container.
	PageIDPrefix = "page-"
	// DefaultTextLayerClass marks the element holding a page's extractable text.
	DefaultTextLayerClass = "textLayer"
)

var pageIDRegex = regexp.MustCompile(`page-(\d+)`)

// Document is an indexed node tree. It is not safe for concurrent use.
type Document struct {
	root  *html.Node
	nodes []*html.Node
	ids   map[*html.Node]NodeID
	last  []NodeID // last descendant of each node

	// Lookup tables, filled once by index.
	parent      []NodeID
	pageOf      []NodeID // nearest page container strictly above the node
	inTextLayer []bool   // text layer reached before a page boundary
	pageNumbers map[NodeID]int
	pagesByNum  map[int]NodeID
	pageOrder   []NodeID
	textLayers  map[NodeID]bool

	textLayerClass string
}

// Option configures a Document.
type Option func(*Document)

// WithTextLayerClass overrides the class that identifies text layer roots.
func WithTextLayerClass(class string) Option {
	return func(d *Document) {
		if class != "" {
			d.textLayerClass = class
		}
	}
}

// Parse reads HTML and indexes the resulting tree.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return New(root, opts...), nil
}

// New indexes an existing tree. The caller keeps ownership of root.
func New(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:           root,
		ids:            make(map[*html.Node]NodeID),
		pageNumbers:    make(map[NodeID]int),
		pagesByNum:     make(map[int]NodeID),
		textLayers:     make(map[NodeID]bool),
		textLayerClass: DefaultTextLayerClass,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.index()
	return d
}

func (d *Document) index() {
	var walk func(n *html.Node, parent, page NodeID, inText bool)
	walk = func(n *html.Node, parent, page NodeID, inText bool) {
		id := NodeID(len(d.nodes))
		d.nodes = append(d.nodes, n)
		d.ids[n] = id
		d.last = append(d.last, id)
		d.parent = append(d.parent, parent)
		d.pageOf = append(d.pageOf, page)
		d.inTextLayer = append(d.inTextLayer, inText)

		childPage, childInText := page, inText
		if n.Type == html.ElementNode {
			isTextLayer := hasClass(n, d.textLayerClass)
			pageID, isPage := attr(n, "id")
			isPage = isPage && strings.HasPrefix(pageID, PageIDPrefix)

			if isTextLayer {
				d.textLayers[id] = true
				childInText = true
			} else if isPage {
				childInText = false
			}
			if isPage {
				num := parsePageNumber(pageID)
				d.pageNumbers[id] = num
				if _, dup := d.pagesByNum[num]; !dup {
					d.pagesByNum[num] = id
				}
				d.pageOrder = append(d.pageOrder, id)
				childPage = id
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, id, childPage, childInText)
		}
		d.last[id] = NodeID(len(d.nodes) - 1)
	}
	if d.root != nil {
		walk(d.root, NoNode, NoNode, false)
	}
}

// parsePageNumber extracts N from "page-N"; anything unparsable is page 1.
func parsePageNumber(id string) int {
	m := pageIDRegex.FindStringSubmatch(id)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

// Len returns the number of indexed nodes.
func (d *Document) Len() int { return len(d.nodes) }

// Root returns the ID of the tree root.
func (d *Document) Root() NodeID {
	if len(d.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Valid reports whether id belongs to this document.
func (d *Document) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(d.nodes)
}

// HTML returns the underlying node. Renderers use it; the indexer does not.
func (d *Document) HTML(id NodeID) *html.Node {
	if !d.Valid(id) {
		return nil
	}
	return d.nodes[id]
}

// ID returns the handle of an underlying node.
func (d *Document) ID(n *html.Node) (NodeID, bool) {
	id, ok := d.ids[n]
	return id, ok
}

// LastDescendant returns the last node of id's subtree (id itself for leaves).
func (d *Document) LastDescendant(id NodeID) NodeID {
	if !d.Valid(id) {
		return NoNode
	}
	return d.last[id]
}

// Children returns the direct children of id in order.
func (d *Document) Children(id NodeID) []NodeID {
	n := d.HTML(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, d.ids[c])
	}
	return out
}

// Parent returns the parent of id, or NoNode for the root.
func (d *Document) Parent(id NodeID) NodeID {
	if !d.Valid(id) {
		return NoNode
	}
	return d.parent[id]
}

// ParentElement returns the parent of id when it is an element.
func (d *Document) ParentElement(id NodeID) NodeID {
	p := d.Parent(id)
	if p == NoNode || d.nodes[p].Type != html.ElementNode {
		return NoNode
	}
	return p
}

// IsText reports whether id is a text node.
func (d *Document) IsText(id NodeID) bool {
	return d.Valid(id) && d.nodes[id].Type == html.TextNode
}

// IsElement reports whether id is an element.
func (d *Document) IsElement(id NodeID) bool {
	return d.Valid(id) && d.nodes[id].Type == html.ElementNode
}

// Tag returns the element name of id, or "" for non-elements.
func (d *Document) Tag(id NodeID) string {
	if !d.IsElement(id) {
		return ""
	}
	return d.nodes[id].Data
}

// Text returns the text content of id: the data of a text node, or the
// concatenated text of an element's subtree.
func (d *Document) Text(id NodeID) string {
	if !d.Valid(id) {
		return ""
	}
	n := d.nodes[id]
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for i := id + 1; i <= d.last[id]; i++ {
		if d.nodes[i].Type == html.TextNode {
			sb.WriteString(d.nodes[i].Data)
		}
	}
	return sb.String()
}

// TextLen returns the length of id's text in runes.
func (d *Document) TextLen(id NodeID) int {
	return len([]rune(d.Text(id)))
}

// PageOf returns the page number of the container that owns id. ok is false
// when id is not inside any page container.
func (d *Document) PageOf(id NodeID) (page int, ok bool) {
	if !d.Valid(id) {
		return 0, false
	}
	c := d.pageOf[id]
	if c == NoNode {
		return 0, false
	}
	return d.pageNumbers[c], true
}

// PageContainerOf returns the container that owns id.
func (d *Document) PageContainerOf(id NodeID) NodeID {
	if !d.Valid(id) {
		return NoNode
	}
	return d.pageOf[id]
}

// InTextLayer reports whether id lies in a text layer. The nearest ancestor
// that is either a text layer root or a page container decides.
func (d *Document) InTextLayer(id NodeID) bool {
	return d.Valid(id) && d.inTextLayer[id]
}

// IsTextLayer reports whether id is a text layer root.
func (d *Document) IsTextLayer(id NodeID) bool {
	return d.textLayers[id]
}

// IsPageContainer reports whether id is a page container.
func (d *Document) IsPageContainer(id NodeID) bool {
	_, ok := d.pageNumbers[id]
	return ok
}

// PageNumber returns the page number of a page container.
func (d *Document) PageNumber(container NodeID) (int, bool) {
	n, ok := d.pageNumbers[container]
	return n, ok
}

// PageContainer returns the container for page n.
func (d *Document) PageContainer(n int) (NodeID, bool) {
	id, ok := d.pagesByNum[n]
	return id, ok
}

// PageContainers returns all page containers in document order.
func (d *Document) PageContainers() []NodeID {
	return append([]NodeID(nil), d.pageOrder...)
}

// PageCount returns the number of page containers.
func (d *Document) PageCount() int { return len(d.pageOrder) }

// Render writes the tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

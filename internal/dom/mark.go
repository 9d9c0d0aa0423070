package dom

import (
	"strings"

	"golang.org/x/net/html"
)

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of an element attribute.
func (d *Document) Attr(id NodeID, key string) (string, bool) {
	if !d.IsElement(id) {
		return "", false
	}
	return attr(d.nodes[id], key)
}

// SetAttr sets an element attribute, replacing any previous value.
func (d *Document) SetAttr(id NodeID, key, val string) {
	if !d.IsElement(id) {
		return
	}
	n := d.nodes[id]
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an element attribute.
func (d *Document) RemoveAttr(id NodeID, key string) {
	if !d.IsElement(id) {
		return
	}
	n := d.nodes[id]
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// HasClass reports whether the element's class list contains class.
func (d *Document) HasClass(id NodeID, class string) bool {
	return d.IsElement(id) && hasClass(d.nodes[id], class)
}

// AddClass appends class to the element's class list once.
func (d *Document) AddClass(id NodeID, class string) {
	if !d.IsElement(id) || d.HasClass(id, class) {
		return
	}
	v, _ := d.Attr(id, "class")
	d.SetAttr(id, "class", strings.TrimSpace(v+" "+class))
}

// RemoveClass drops class from the element's class list. The class attribute
// is removed when nothing is left.
func (d *Document) RemoveClass(id NodeID, class string) {
	v, ok := d.Attr(id, "class")
	if !ok {
		return
	}
	var keep []string
	for _, c := range strings.Fields(v) {
		if c != class {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		d.RemoveAttr(id, "class")
		return
	}
	d.SetAttr(id, "class", strings.Join(keep, " "))
}

// WithAttr returns every element carrying key, in document order.
func (d *Document) WithAttr(key string) []NodeID {
	var out []NodeID
	for i, n := range d.nodes {
		if n.Type != html.ElementNode {
			continue
		}
		if _, ok := attr(n, key); ok {
			out = append(out, NodeID(i))
		}
	}
	return out
}

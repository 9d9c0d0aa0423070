package reader

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownFormat implements Format for Markdown files. Every top-level
// heading starts a new page and becomes a TOC entry.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

func (f *MarkdownFormat) Load(filename string, opts Options) (*Document, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	doc := parseMarkdown(src, opts)
	doc.Title = title(filename)
	return doc, nil
}

func parseMarkdown(src []byte, opts Options) *Document {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	b := newPageBuilder(opts.linesPerPage())
	var toc []TOCEntry
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			if h.Level == 1 {
				b.breakPage()
			}
			toc = append(toc, TOCEntry{
				Title: inlineText(h, src),
				Page:  b.nextPage(),
				Level: h.Level - 1, // h1 = level 0
			})
		}
		for _, line := range blockLines(n, src) {
			b.add(line)
		}
		b.add("")
	}
	return &Document{Pages: b.finish(), TOC: toc}
}

// blockLines renders a block node as plain display lines.
func blockLines(n ast.Node, src []byte) []string {
	switch node := n.(type) {
	case *ast.Heading:
		return []string{strings.Repeat("#", node.Level) + " " + inlineText(node, src)}
	case *ast.Paragraph, *ast.TextBlock:
		return strings.Split(inlineText(node, src), "\n")
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return rawLines(node, src)
	case *ast.ThematicBreak:
		return []string{"----"}
	case *ast.Blockquote:
		var out []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			for _, l := range blockLines(c, src) {
				out = append(out, "> "+l)
			}
		}
		return out
	case *ast.List:
		var out []string
		num := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "- "
			if node.IsOrdered() {
				marker = strconv.Itoa(num) + ". "
				num++
			}
			first := true
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				for _, l := range blockLines(c, src) {
					if first {
						out = append(out, marker+l)
						first = false
						continue
					}
					out = append(out, strings.Repeat(" ", len(marker))+l)
				}
			}
		}
		return out
	}

	var out []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, blockLines(c, src)...)
	}
	if len(out) == 0 {
		if t := inlineText(n, src); t != "" {
			out = strings.Split(t, "\n")
		}
	}
	return out
}

func rawLines(n ast.Node, src []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(src)), "\r\n"))
	}
	return out
}

// inlineText collects the text of inline children, keeping line breaks.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.AutoLink:
				buf.Write(t.Label(src))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

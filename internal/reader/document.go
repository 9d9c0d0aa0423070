// Package reader loads documents from disk and splits them into pages.
package reader

import (
	"errors"
	"strings"
)

// DefaultLinesPerPage is used when a format has no page structure of its own.
const DefaultLinesPerPage = 40

// ErrNoText is returned when a document yields no readable text.
var ErrNoText = errors.New("no text to read")

// Page is one page of text, numbered from 1.
type Page struct {
	Number int
	Lines  []string
}

// Document is a loaded, paginated document.
type Document struct {
	Title string
	Pages []Page
	TOC   []TOCEntry
}

// Options controls pagination.
type Options struct {
	LinesPerPage int
}

func (o Options) linesPerPage() int {
	if o.LinesPerPage <= 0 {
		return DefaultLinesPerPage
	}
	return o.LinesPerPage
}

// FromText paginates plain text. Form feeds force a page break.
func FromText(title, text string, opts Options) *Document {
	b := newPageBuilder(opts.linesPerPage())
	for i, chunk := range strings.Split(text, "\f") {
		if i > 0 {
			b.breakPage()
		}
		chunk = strings.TrimRight(chunk, "\n")
		if chunk == "" {
			continue
		}
		for _, line := range strings.Split(chunk, "\n") {
			b.add(strings.TrimRight(line, "\r"))
		}
	}
	return &Document{Title: title, Pages: b.finish()}
}

// pageBuilder fills pages line by line.
type pageBuilder struct {
	perPage int
	pages   []Page
	cur     []string
}

func newPageBuilder(perPage int) *pageBuilder {
	return &pageBuilder{perPage: perPage}
}

func (b *pageBuilder) add(line string) {
	if len(b.cur) == 0 && strings.TrimSpace(line) == "" {
		return
	}
	b.cur = append(b.cur, line)
	if len(b.cur) >= b.perPage {
		b.breakPage()
	}
}

// breakPage closes the current page if it has content.
func (b *pageBuilder) breakPage() {
	if len(b.cur) == 0 {
		return
	}
	b.pages = append(b.pages, Page{Number: len(b.pages) + 1, Lines: b.cur})
	b.cur = nil
}

// nextPage returns the number of the page the next line will land on.
func (b *pageBuilder) nextPage() int {
	return len(b.pages) + 1
}

func (b *pageBuilder) finish() []Page {
	b.breakPage()
	return b.pages
}

// HasText reports whether any page carries non-blank text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		for _, l := range p.Lines {
			if strings.TrimSpace(l) != "" {
				return true
			}
		}
	}
	return false
}

package reader

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXFormat implements Format for Word documents. Heading 1 paragraphs start
// a page; all headings go into the TOC.
type DOCXFormat struct{}

func init() {
	Register(&DOCXFormat{})
}

func (f *DOCXFormat) Name() string         { return "DOCX" }
func (f *DOCXFormat) Extensions() []string { return []string{".docx"} }

func (f *DOCXFormat) Load(filename string, opts Options) (*Document, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse docx: %w", err)
	}

	b := newPageBuilder(opts.linesPerPage())
	var toc []TOCEntry
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if level := docxHeadingLevel(para); level > 0 && text != "" {
			if level == 1 {
				b.breakPage()
			}
			toc = append(toc, TOCEntry{Title: text, Page: b.nextPage(), Level: level - 1})
		}
		b.add(text)
	}
	return &Document{Title: title(filename), Pages: b.finish(), TOC: toc}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

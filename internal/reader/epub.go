package reader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// EPUBFormat implements Format for EPUB files. Each spine item starts a page.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

func (f *EPUBFormat) Load(filename string, opts Options) (*Document, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	b := newPageBuilder(opts.linesPerPage())
	firstPage := make(map[string]int) // spine href -> first page

	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		lines, err := htmlLines(bytes.NewReader(data))
		if err != nil || len(lines) == 0 {
			continue
		}

		b.breakPage()
		if ref.Item.HREF != "" {
			firstPage[ref.Item.HREF] = b.nextPage()
			firstPage[path.Base(ref.Item.HREF)] = b.nextPage()
		}
		for _, l := range lines {
			b.add(l)
		}
	}

	doc := &Document{Title: title(filename), Pages: b.finish()}

	// A missing or broken NCX only costs the TOC.
	if ncxData, err := findAndReadNCX(filename, book); err == nil {
		var toc ncx
		if err := xml.Unmarshal(ncxData, &toc); err == nil {
			doc.TOC = flattenNavPoints(toc.NavMap.NavPoints, firstPage, 0)
		}
	}
	return doc, nil
}

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	Label    navLabel   `xml:"navLabel"`
	Content  navContent `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

func findAndReadNCX(filename string, book *epub.Rootfile) ([]byte, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ncxPath string
	for _, item := range book.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}
	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}

// flattenNavPoints turns the nav tree into TOC entries, resolving each target
// to the first page of its spine item.
func flattenNavPoints(points []navPoint, firstPage map[string]int, level int) []TOCEntry {
	var entries []TOCEntry
	for _, np := range points {
		href := np.Content.Src
		if idx := strings.Index(href, "#"); idx != -1 {
			href = href[:idx]
		}
		page, ok := firstPage[href]
		if !ok {
			page, ok = firstPage[path.Base(href)]
		}
		if !ok {
			page = 1
		}
		entries = append(entries, TOCEntry{
			Title: strings.TrimSpace(np.Label.Text),
			Page:  page,
			Level: level,
		})
		entries = append(entries, flattenNavPoints(np.Children, firstPage, level+1)...)
	}
	return entries
}

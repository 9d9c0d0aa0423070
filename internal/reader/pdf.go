package reader

import (
	"fmt"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFFormat implements Format for PDF files. Pages follow the PDF's own
// pagination, so page N in the viewer is page N of the file.
type PDFFormat struct{}

func init() {
	Register(&PDFFormat{})
}

func (f *PDFFormat) Name() string         { return "PDF" }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }

func (f *PDFFormat) Load(filename string, opts Options) (*Document, error) {
	file, r, err := pdflib.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	count, err := pdfPageCount(filename)
	if err != nil {
		count = r.NumPage()
	}

	pages := make([]Page, 0, count)
	for i := 1; i <= count; i++ {
		pages = append(pages, Page{Number: i, Lines: pdfPageLines(r, i)})
	}
	return &Document{Title: title(filename), Pages: pages}, nil
}

// pdfPageCount reads the page tree with pdfcpu, which is stricter about
// counting than the text extractor.
func pdfPageCount(filename string) (int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, nil)
}

func pdfPageLines(r *pdflib.Reader, n int) []string {
	if n > r.NumPage() {
		return nil
	}
	page := r.Page(n)
	if page.V.IsNull() {
		return nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimRight(l, " \r\t"))
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

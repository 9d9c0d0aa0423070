//go:build gui

package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/atotto/clipboard"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/metcalfc/folio/internal/dom"
	"github.com/metcalfc/folio/internal/render"
	"github.com/metcalfc/folio/internal/selection"
)

const baseTextSize = 14

var highlightColor = color.RGBA{R: 255, G: 170, B: 0, A: 255}

// rowsLayout stacks rows at a fixed height so row n starts at n*height.
type rowsLayout struct {
	height float32
	width  float32
}

func (l *rowsLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(l.width, l.height*float32(len(objects)))
}

func (l *rowsLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for i, o := range objects {
		o.Move(fyne.NewPos(0, float32(i)*l.height))
		o.Resize(fyne.NewSize(size.Width, l.height))
	}
}

// pagePane is the scroll container handed to the viewport model.
type pagePane struct {
	scroll    *container.Scroll
	body      *fyne.Container
	layout    *render.Layout
	rowHeight float32
	offset    float32
}

func (p *pagePane) ScrollOffset() float64 { return float64(p.scroll.Offset.Y) }

func (p *pagePane) PageOffset(n int) (float64, bool) {
	top, ok := p.layout.PageTop(n)
	if !ok {
		return 0, false
	}
	return float64(float32(top)*p.rowHeight - p.scroll.Offset.Y), true
}

func (p *pagePane) ScrollTo(offset float64) {
	p.offset = float32(offset)
	p.scroll.ScrollToOffset(fyne.NewPos(0, p.offset))
	p.offset = p.scroll.Offset.Y
}

// pageEntry confirms its value when it loses focus as well as on Enter.
type pageEntry struct {
	widget.Entry
	onBlur func()
}

func newPageEntry() *pageEntry {
	e := &pageEntry{}
	e.ExtendBaseWidget(e)
	return e
}

func (e *pageEntry) FocusLost() {
	e.Entry.FocusLost()
	if e.onBlur != nil {
		e.onBlur()
	}
}

type viewer struct {
	ctx  context.Context
	s    *session
	win  fyne.Window
	pane *pagePane

	prev, next      *widget.Button
	zoomIn, zoomOut *widget.Button
	page            *pageEntry
	field           *pageField
	total           *widget.Label
	zoom            *widget.Label
	status          *widget.Label
	toc             *widget.List
	split           *container.Split
}

func newViewer(ctx context.Context, s *session, win fyne.Window) *viewer {
	v := &viewer{ctx: ctx, s: s, win: win, field: &pageField{sync: s.sync}}

	v.pane = &pagePane{body: container.New(&rowsLayout{})}
	v.pane.scroll = container.NewVScroll(v.pane.body)
	v.pane.scroll.OnScrolled = v.onScrolled

	v.prev = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), s.sync.Previous)
	v.next = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), s.sync.Next)
	v.zoomOut = widget.NewButtonWithIcon("", theme.ZoomOutIcon(), func() {
		s.sync.ZoomOut()
		v.relayout()
	})
	v.zoomIn = widget.NewButtonWithIcon("", theme.ZoomInIcon(), func() {
		s.sync.ZoomIn()
		v.relayout()
	})

	v.page = newPageEntry()
	v.page.OnChanged = v.field.edited
	v.page.OnSubmitted = func(string) { s.sync.CommitPageInput() }
	v.page.onBlur = s.sync.CommitPageInput

	v.total = widget.NewLabel("")
	v.zoom = widget.NewLabel("")
	v.status = widget.NewLabel("")
	v.status.Wrapping = fyne.TextWrapWord

	s.sync.OnChange(func() {
		s.save()
		v.refreshControls()
	})

	v.rebuild()
	s.sync.SetScroller(v.pane)
	s.sync.OnDocumentLoaded(s.tree.PageCount())
	v.refreshControls()
	return v
}

func (v *viewer) content() fyne.CanvasObject {
	toolbar := container.NewHBox(
		v.prev,
		container.NewGridWrap(fyne.NewSize(64, v.page.MinSize().Height), v.page),
		v.total,
		v.next,
		widget.NewSeparator(),
		v.zoomOut,
		v.zoom,
		v.zoomIn,
		widget.NewSeparator(),
		widget.NewButton("Select page", v.capturePage),
		widget.NewButton("Select visible", v.captureVisible),
		widget.NewButtonWithIcon("Summarize", theme.DocumentIcon(), v.summarizeLast),
		widget.NewButtonWithIcon("", theme.ContentUndoIcon(), v.removeLast),
		widget.NewButtonWithIcon("", theme.DeleteIcon(), v.clearAll),
	)
	reading := container.NewBorder(toolbar, v.status, nil, nil, v.pane.scroll)

	if len(v.s.doc.TOC) == 0 {
		return reading
	}

	v.toc = widget.NewList(
		func() int { return len(v.s.doc.TOC) },
		func() fyne.CanvasObject { return widget.NewLabel("Title") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			e := v.s.doc.TOC[id]
			obj.(*widget.Label).SetText(fmt.Sprintf("%s%s  (p. %d)", strings.Repeat("  ", e.Level), e.Title, e.Page))
		},
	)
	v.toc.OnSelected = func(id widget.ListItemID) {
		if id < len(v.s.doc.TOC) {
			v.s.sync.JumpToPage(v.s.doc.TOC[id].Page)
		}
	}
	tocPanel := container.NewBorder(widget.NewLabel("Contents"), nil, nil, nil, v.toc)
	v.split = container.NewHSplit(tocPanel, reading)
	v.split.Offset = 0.25
	return v.split
}

func (v *viewer) toggleTOC() {
	if v.split == nil {
		return
	}
	if v.split.Leading.Visible() {
		v.split.Leading.Hide()
	} else {
		v.split.Leading.Show()
	}
	v.split.Refresh()
}

// rebuild lays the tree out at the current zoom and recreates the rows.
func (v *viewer) rebuild() {
	scale := v.s.sync.Scale()
	size := float32(baseTextSize * scale)
	style := fyne.TextStyle{Monospace: true}

	l := render.NewLayout(v.s.tree, v.s.cfg.PageWidth, scale)
	v.pane.layout = l
	v.pane.rowHeight = fyne.MeasureText("M", size, style).Height

	objs := make([]fyne.CanvasObject, len(l.Rows))
	for i, row := range l.Rows {
		objs[i] = v.rowText(row, size, style)
	}
	v.pane.body.Layout = &rowsLayout{
		height: v.pane.rowHeight,
		width:  fyne.MeasureText(strings.Repeat("M", l.Width), size, style).Width,
	}
	v.pane.body.Objects = objs
	v.pane.body.Refresh()
	v.pane.scroll.Refresh()
}

func (v *viewer) rowText(row render.Row, size float32, style fyne.TextStyle) *canvas.Text {
	c := theme.Color(theme.ColorNameForeground)
	switch {
	case row.Chrome:
		c = theme.Color(theme.ColorNameDisabled)
		style.Italic = true
	case v.s.highlighted(row):
		c = highlightColor
	}
	t := canvas.NewText(row.Text, c)
	t.TextSize = size
	t.TextStyle = style
	return t
}

// relayout rebuilds after a zoom and keeps the current page in view.
func (v *viewer) relayout() {
	v.rebuild()
	v.keepPage()
}

func (v *viewer) keepPage() {
	if top, ok := v.pane.layout.PageTop(v.s.sync.CurrentPage()); ok {
		v.pane.ScrollTo(float64(float32(top) * v.pane.rowHeight))
	}
}

func (v *viewer) onScrolled(pos fyne.Position) {
	if pos.Y == v.pane.offset || v.pane.rowHeight == 0 {
		return
	}
	v.pane.offset = pos.Y
	center := (pos.Y + v.pane.scroll.Size().Height/2) / v.pane.rowHeight
	v.s.sync.OnScroll(float64(center), v.pane.layout.PageCenters())
}

func (v *viewer) refreshControls() {
	sync := v.s.sync
	v.field.show(v.page.Text, v.page.SetText)
	v.total.SetText(fmt.Sprintf("of %d", sync.TotalPages()))
	v.zoom.SetText(fmt.Sprintf("%.0f%%", sync.Scale()*100))
	enable(v.prev, sync.CanPrevious())
	enable(v.next, sync.CanNext())
	enable(v.zoomOut, sync.CanZoomOut())
	enable(v.zoomIn, sync.CanZoomIn())
}

func enable(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

func (v *viewer) capturePage() {
	r, ok := render.PageTextRange(v.s.tree, v.s.sync.CurrentPage())
	if !ok {
		return
	}
	v.capture(r)
}

func (v *viewer) captureVisible() {
	p := v.pane
	rows := p.layout.Rows
	if len(rows) == 0 || p.rowHeight == 0 {
		return
	}
	first := max(0, min(int(p.scroll.Offset.Y/p.rowHeight), len(rows)-1))
	last := max(first, min(int((p.scroll.Offset.Y+p.scroll.Size().Height)/p.rowHeight)-1, len(rows)-1))
	col := max(0, runewidth.StringWidth(rows[last].Text)-1)
	r, ok := p.layout.Range(v.s.tree, first, 0, last, col)
	if !ok {
		return
	}
	v.capture(r)
}

func (v *viewer) capture(r dom.Range) {
	ts, err := v.s.capture(r, clipboard.WriteAll)
	switch {
	case errors.Is(err, selection.ErrNoSelection), errors.Is(err, selection.ErrNoNodes):
		v.status.SetText("Nothing selected")
		return
	case err != nil:
		v.status.SetText(err.Error())
		return
	}
	v.status.SetText(fmt.Sprintf("Captured %s: %d chars from page(s) %s", ts.ID, len([]rune(ts.Text)), joinInts(ts.Pages())))
	v.rebuild()
}

func (v *viewer) removeLast() {
	if last, ok := v.s.ix.Last(); ok {
		v.s.ix.RemoveSelection(last.ID)
		v.status.SetText("Removed " + last.ID)
		v.rebuild()
	}
}

func (v *viewer) clearAll() {
	v.s.ix.ClearAllSelections()
	v.status.SetText("")
	v.rebuild()
}

func (v *viewer) summarizeLast() {
	ts, ok := v.s.ix.Last()
	if !ok {
		v.status.SetText("No selection to summarize")
		return
	}
	if v.s.summarizer == nil {
		v.status.SetText("Summarization is disabled: set OPENAI_API_KEY")
		return
	}
	v.status.SetText("Summarizing " + ts.ID + "...")
	go func() {
		text, err := v.s.summarize(v.ctx, ts)
		fyne.Do(func() {
			if err != nil {
				v.status.SetText(fmt.Sprintf("Summary of %s failed: %v", ts.ID, err))
				return
			}
			v.status.SetText(ts.ID + ": " + text)
		})
	}()
}

func (v *viewer) reload() {
	if err := v.s.reload(); err != nil {
		v.status.SetText(err.Error())
		return
	}
	v.rebuild()
	v.s.sync.OnDocumentLoaded(v.s.tree.PageCount())
	if v.toc != nil {
		v.toc.Refresh()
	}
	v.status.SetText("Reloaded")
}

func runGUI(cmd *cobra.Command, s *session, opts *options) error {
	a := app.NewWithID("com.metcalfc.folio")
	w := a.NewWindow("folio - " + s.doc.Title)

	v := newViewer(cmd.Context(), s, w)
	w.SetContent(v.content())
	if !opts.toc {
		v.toggleTOC()
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeyRight:
			s.sync.Next()
		case fyne.KeyLeft:
			s.sync.Previous()
		case fyne.KeyQ:
			a.Quit()
		}
	})
	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case '+', '=':
			s.sync.ZoomIn()
			v.relayout()
		case '-':
			s.sync.ZoomOut()
			v.relayout()
		case 't', 'T':
			v.toggleTOC()
		}
	})

	changes, err := s.watch()
	if err != nil {
		s.log.Warn("not watching document", "error", err)
	}
	if changes != nil {
		go func() {
			for range changes {
				fyne.Do(v.reload)
			}
		}()
	}
	go func() {
		<-cmd.Context().Done()
		fyne.Do(a.Quit)
	}()

	w.SetOnClosed(s.save)
	w.Resize(fyne.NewSize(900, 700))

	// Scroll to the restored page once the window has a size.
	go func() {
		time.Sleep(100 * time.Millisecond)
		fyne.Do(v.keepPage)
	}()

	w.ShowAndRun()
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd("gfolio", "gfolio - document viewer", runGUI)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

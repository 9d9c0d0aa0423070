//go:build !gui

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	scrollview "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/metcalfc/folio/internal/render"
	"github.com/metcalfc/folio/internal/selection"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	chromeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#FFAA00")).
			Foreground(lipgloss.Color("#000000"))

	visualStyle = lipgloss.NewStyle().
			Reverse(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	tocSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#00FF00")).
				Bold(true)
)

type keyMap struct {
	Next      key.Binding
	Prev      key.Binding
	Page      key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	Visual    key.Binding
	Summarize key.Binding
	Undo      key.Binding
	ClearAll  key.Binding
	TOC       key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Page, k.ZoomIn, k.ZoomOut, k.Visual, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Page, k.TOC},
		{k.ZoomIn, k.ZoomOut},
		{k.Visual, k.Summarize, k.Undo, k.ClearAll},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Next:      key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next page")),
	Prev:      key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous page")),
	Page:      key.NewBinding(key.WithKeys("g", ":"), key.WithHelp("g", "go to page")),
	ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	Visual:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select")),
	Summarize: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "summarize selection")),
	Undo:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "remove last selection")),
	ClearAll:  key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "clear selections")),
	TOC:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "contents")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// pane is the scroll container handed to the viewport model. offset tracks
// the last position the model knows about, so programmatic scrolls are not
// mistaken for the user's.
type pane struct {
	vp     scrollview.Model
	layout *render.Layout
	offset int
}

func (p *pane) ScrollOffset() float64 { return float64(p.vp.YOffset) }

func (p *pane) PageOffset(n int) (float64, bool) {
	top, ok := p.layout.PageTop(n)
	if !ok {
		return 0, false
	}
	return float64(top - p.vp.YOffset), true
}

func (p *pane) ScrollTo(offset float64) {
	p.vp.SetYOffset(int(math.Round(offset)))
	p.offset = p.vp.YOffset
}

type mode int

const (
	modeRead mode = iota
	modeVisual
	modeTOC
)

// cursor is a cell of the layout; col counts runes.
type cursor struct {
	row, col int
}

type summaryMsg struct {
	id   string
	text string
	err  error
}

type reloadMsg struct{}

type model struct {
	ctx   context.Context
	s     *session
	pane  *pane
	input textinput.Model
	help  help.Model

	mode        mode
	anchor, cur cursor
	tocIndex    int

	summaries map[string]string
	status    string
	changes   <-chan struct{}
	copy      func(string) error

	width    int
	height   int
	quitting bool
}

func newModel(s *session, width, height int) model {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 6
	input.Width = 6

	m := model{
		ctx:       context.Background(),
		s:         s,
		pane:      &pane{vp: scrollview.New(width, max(1, height-2))},
		input:     input,
		help:      help.New(),
		summaries: make(map[string]string),
		copy:      clipboard.WriteAll,
		width:     width,
		height:    height,
	}
	m.relayout()
	s.sync.SetScroller(m.pane)
	s.sync.OnDocumentLoaded(s.tree.PageCount())
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return reloadMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// relayout wraps the tree at the current zoom and refreshes the pane.
func (m *model) relayout() {
	width := m.s.cfg.PageWidth
	if m.width > 2 && m.width-2 < width {
		width = m.width - 2
	}
	m.pane.layout = render.NewLayout(m.s.tree, width, m.s.sync.Scale())
	m.refresh()
}

func (m *model) refresh() {
	m.pane.vp.SetContent(m.renderContent())
}

// keepPage puts the current page back at the top after a relayout.
func (m *model) keepPage() {
	if top, ok := m.pane.layout.PageTop(m.s.sync.CurrentPage()); ok {
		m.pane.ScrollTo(float64(top))
	}
}

// afterScroll reports a user scroll to the viewport model.
func (m *model) afterScroll() {
	if m.pane.vp.YOffset == m.pane.offset {
		return
	}
	m.pane.offset = m.pane.vp.YOffset
	center := float64(m.pane.vp.YOffset) + float64(m.pane.vp.Height)/2
	m.s.sync.OnScroll(center, m.pane.layout.PageCenters())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pane.vp.Width = msg.Width
		m.pane.vp.Height = max(1, msg.Height-2)
		m.help.Width = msg.Width
		m.relayout()
		m.keepPage()
		return m, nil

	case reloadMsg:
		if err := m.s.reload(); err != nil {
			m.status = err.Error()
		} else {
			m.mode = modeRead
			m.relayout()
			m.s.sync.OnDocumentLoaded(m.s.tree.PageCount())
			m.status = "Reloaded"
		}
		return m, waitForChange(m.changes)

	case summaryMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Summary of %s failed: %v", msg.id, msg.err)
		} else {
			m.summaries[msg.id] = msg.text
			m.status = msg.id + ": " + msg.text
		}
		return m, nil

	case tea.KeyMsg:
		m.status = ""
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		switch m.mode {
		case modeVisual:
			return m.updateVisual(msg)
		case modeTOC:
			return m.updateTOC(msg)
		}
		return m.updateRead(msg)
	}

	var cmd tea.Cmd
	m.pane.vp, cmd = m.pane.vp.Update(msg)
	m.afterScroll()
	return m, cmd
}

func (m model) updateRead(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ix := m.s.ix
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Next):
		m.s.sync.Next()

	case key.Matches(msg, keys.Prev):
		m.s.sync.Previous()

	case key.Matches(msg, keys.Page):
		m.input.SetValue("")
		m.input.Placeholder = m.s.sync.PageInput()
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, keys.ZoomIn):
		m.s.sync.ZoomIn()
		m.relayout()
		m.keepPage()

	case key.Matches(msg, keys.ZoomOut):
		m.s.sync.ZoomOut()
		m.relayout()
		m.keepPage()

	case key.Matches(msg, keys.Visual):
		m.mode = modeVisual
		m.cur = cursor{row: m.pane.vp.YOffset}
		m.anchor = m.cur
		m.refresh()

	case key.Matches(msg, keys.Summarize):
		cmd := m.summarizeLast()
		return m, cmd

	case key.Matches(msg, keys.Undo):
		if last, ok := ix.Last(); ok {
			ix.RemoveSelection(last.ID)
			delete(m.summaries, last.ID)
			m.status = "Removed " + last.ID
			m.refresh()
		}

	case key.Matches(msg, keys.ClearAll):
		ix.ClearAllSelections()
		m.summaries = make(map[string]string)
		m.refresh()

	case key.Matches(msg, keys.TOC):
		if len(m.s.doc.TOC) > 0 {
			m.mode = modeTOC
			m.tocIndex = m.currentTOCEntry()
		}

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	default:
		var cmd tea.Cmd
		m.pane.vp, cmd = m.pane.vp.Update(msg)
		m.afterScroll()
		return m, cmd
	}
	return m, nil
}

// updateInput edits the page field. Enter confirms; Esc leaves the field,
// which confirms as well.
func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.s.sync.CommitPageInput()
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.s.sync.EditPageInput(m.input.Value())
	return m, cmd
}

func (m model) updateVisual(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "v":
		m.mode = modeRead
	case "h", "left":
		m.cur.col--
	case "l", "right":
		m.cur.col++
	case "j", "down":
		m.cur.row++
	case "k", "up":
		m.cur.row--
	case "0", "home":
		m.cur.col = 0
	case "$", "end":
		m.cur.col = math.MaxInt32
	case "y", "enter":
		m.capture()
		m.mode = modeRead
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	m.clampCursor()
	m.followCursor()
	m.refresh()
	return m, nil
}

func (m *model) clampCursor() {
	rows := m.pane.layout.Rows
	m.cur.row = max(0, min(m.cur.row, len(rows)-1))
	n := len([]rune(rows[m.cur.row].Text))
	m.cur.col = max(0, min(m.cur.col, n-1))
}

// followCursor scrolls just enough to keep the cursor visible. It is the
// user moving through the document, so it counts as a scroll.
func (m *model) followCursor() {
	vp := &m.pane.vp
	switch {
	case m.cur.row < vp.YOffset:
		vp.SetYOffset(m.cur.row)
	case m.cur.row >= vp.YOffset+vp.Height:
		vp.SetYOffset(m.cur.row - vp.Height + 1)
	}
	m.afterScroll()
}

// cellOf converts a cursor column into display cells.
func (m *model) cellOf(c cursor) int {
	runes := []rune(m.pane.layout.Rows[c.row].Text)
	return runewidth.StringWidth(string(runes[:min(c.col, len(runes))]))
}

// capture turns the visual selection into a selection record and copies its
// text to the clipboard.
func (m *model) capture() {
	r, ok := m.pane.layout.Range(m.s.tree, m.anchor.row, m.cellOf(m.anchor), m.cur.row, m.cellOf(m.cur))
	if !ok {
		return
	}
	ts, err := m.s.capture(r, m.copy)
	switch {
	case errors.Is(err, selection.ErrNoSelection), errors.Is(err, selection.ErrNoNodes):
		m.status = "Nothing selected"
	case err != nil:
		m.status = err.Error()
	default:
		m.status = fmt.Sprintf("Captured %s: %d chars from page(s) %s", ts.ID, len([]rune(ts.Text)), joinInts(ts.Pages()))
	}
}

func (m *model) summarizeLast() tea.Cmd {
	ts, ok := m.s.ix.Last()
	if !ok {
		m.status = "No selection to summarize"
		return nil
	}
	if m.s.summarizer == nil {
		m.status = "Summarization is disabled: set OPENAI_API_KEY"
		return nil
	}
	m.status = "Summarizing " + ts.ID + "..."
	ctx, s := m.ctx, m.s
	return func() tea.Msg {
		text, err := s.summarize(ctx, ts)
		return summaryMsg{id: ts.ID, text: text, err: err}
	}
}

func (m *model) currentTOCEntry() int {
	idx := 0
	for i, e := range m.s.doc.TOC {
		if e.Page <= m.s.sync.CurrentPage() {
			idx = i
		}
	}
	return idx
}

func (m model) updateTOC(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	toc := m.s.doc.TOC
	switch msg.String() {
	case "j", "down":
		m.tocIndex = min(m.tocIndex+1, len(toc)-1)
	case "k", "up":
		m.tocIndex = max(m.tocIndex-1, 0)
	case "enter":
		m.s.sync.JumpToPage(toc[m.tocIndex].Page)
		m.mode = modeRead
	case "esc", "t":
		m.mode = modeRead
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) renderContent() string {
	lo, hi := m.anchor, m.cur
	if hi.row < lo.row || (hi.row == lo.row && hi.col < lo.col) {
		lo, hi = hi, lo
	}

	var b strings.Builder
	for i, row := range m.pane.layout.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case m.mode == modeVisual && i >= lo.row && i <= hi.row:
			b.WriteString(renderVisualRow(row.Text, i, lo, hi))
		case row.Chrome:
			b.WriteString(chromeStyle.Render(row.Text))
		case m.s.highlighted(row):
			b.WriteString(highlightStyle.Render(row.Text))
		default:
			b.WriteString(row.Text)
		}
	}
	return b.String()
}

func renderVisualRow(text string, i int, lo, hi cursor) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return visualStyle.Render(" ")
	}
	start, end := 0, len(runes)
	if i == lo.row {
		start = min(lo.col, len(runes))
	}
	if i == hi.row {
		end = min(hi.col+1, len(runes))
	}
	if end < start {
		end = start
	}
	return string(runes[:start]) + visualStyle.Render(string(runes[start:end])) + string(runes[end:])
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	if m.mode == modeTOC {
		body = m.tocView()
	} else {
		body = m.pane.vp.View()
	}

	footer := m.help.View(keys)
	if m.status != "" {
		footer = statusStyle.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, footer)
}

func (m model) headerView() string {
	sync := m.s.sync

	prev, next := "◀", "▶"
	if !sync.CanPrevious() {
		prev = disabledStyle.Render(prev)
	}
	if !sync.CanNext() {
		next = disabledStyle.Render(next)
	}
	page := sync.PageInput()
	if m.input.Focused() {
		page = m.input.View()
	}

	tag := ""
	switch m.mode {
	case modeVisual:
		tag = " | VISUAL"
	case modeTOC:
		tag = " | CONTENTS"
	}
	return headerStyle.Render(fmt.Sprintf("%s %s %s/%d %s | %d%% | %d selections%s",
		m.s.doc.Title, prev, page, sync.TotalPages(), next,
		int(math.Round(sync.Scale()*100)), m.s.ix.Len(), tag))
}

func (m model) tocView() string {
	toc := m.s.doc.TOC
	height := max(1, m.pane.vp.Height)
	start := max(0, min(m.tocIndex-height/2, len(toc)-height))

	var lines []string
	for i := start; i < len(toc) && len(lines) < height; i++ {
		e := toc[i]
		line := fmt.Sprintf("%s%s  (p. %d)", strings.Repeat("  ", e.Level), e.Title, e.Page)
		if i == m.tocIndex {
			line = tocSelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func runTUI(cmd *cobra.Command, s *session, opts *options) error {
	changes, err := s.watch()
	if err != nil {
		s.log.Warn("not watching document", "error", err)
	}

	m := newModel(s, 80, 24)
	m.ctx = cmd.Context()
	m.changes = changes
	if opts.toc && len(s.doc.TOC) > 0 {
		m.mode = modeTOC
		m.tocIndex = m.currentTOCEntry()
	}

	progOpts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	}
	if s.path == "" {
		// stdin held the document; keys come from the terminal.
		progOpts = append(progOpts, tea.WithInputTTY())
	}
	p := tea.NewProgram(m, progOpts...)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd("folio", "folio - terminal document viewer", runTUI)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

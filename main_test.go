//go:build !gui

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/folio/internal/reader"
	"github.com/metcalfc/folio/internal/selection"
	"github.com/metcalfc/folio/internal/summarize"
	"github.com/metcalfc/folio/internal/viewport"
)

// newTestModel opens twelve lines at five lines per page. The layout is:
//
//	rows 0-6   page 1 (header, five lines, gap), center 3
//	rows 7-13  page 2, center 10
//	rows 14-17 page 3 (header, two lines, gap), center 15.5
//
// The pane shows six rows, so the largest offset is 12.
func newTestModel(t *testing.T) (model, *string) {
	t.Helper()
	s, err := newSession(testConfig(t), discardLogger(), "", strings.NewReader(numberedLines(12)))
	require.NoError(t, err)

	m := newModel(s, 80, 8)
	copied := new(string)
	m.copy = func(text string) error {
		*copied = text
		return nil
	}
	return m, copied
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends each key in turn. Single characters are typed runes; anything
// else is looked up by name.
func press(t *testing.T, m model, keys ...string) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "pgdown":
			msg = tea.KeyMsg{Type: tea.KeyPgDown}
		default:
			msg = runeKey(k)
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(model)
	}
	return m, cmd
}

func TestModelStartsAtFirstPage(t *testing.T) {
	m, _ := newTestModel(t)

	assert.Equal(t, 1, m.s.sync.CurrentPage())
	assert.Equal(t, 3, m.s.sync.TotalPages())
	assert.Equal(t, 18, len(m.pane.layout.Rows))
	assert.Equal(t, 0, m.pane.vp.YOffset)
	assert.Equal(t, []float64{3, 10, 15.5}, m.pane.layout.PageCenters())
}

func TestPaneScroller(t *testing.T) {
	m, _ := newTestModel(t)

	off, ok := m.pane.PageOffset(2)
	require.True(t, ok)
	assert.Equal(t, 7.0, off)

	_, ok = m.pane.PageOffset(9)
	assert.False(t, ok)

	m.pane.ScrollTo(4)
	assert.Equal(t, 4.0, m.pane.ScrollOffset())
	off, _ = m.pane.PageOffset(2)
	assert.Equal(t, 3.0, off)

	// Offsets past the end clamp.
	m.pane.ScrollTo(100)
	assert.Equal(t, 12.0, m.pane.ScrollOffset())
}

func TestNavigationKeys(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		wantPage   int
		wantOffset int
	}{
		{"next", []string{"n"}, 2, 7},
		{"next twice clamps scroll", []string{"n", "n"}, 3, 12},
		{"next at last page", []string{"n", "n", "n"}, 3, 12},
		{"next then previous", []string{"n", "p"}, 1, 0},
		{"previous at first page", []string{"p"}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t)
			m, _ = press(t, m, tt.keys...)

			assert.Equal(t, tt.wantPage, m.s.sync.CurrentPage())
			assert.Equal(t, tt.wantOffset, m.pane.vp.YOffset)
			assert.Equal(t, viewport.AwaitingNavigationSync, m.s.sync.State())
		})
	}
}

func TestScrollUpdatesPageWithoutScrollingBack(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "pgdown")

	// Center row 9 is closest to page 2's center.
	assert.Equal(t, 6, m.pane.vp.YOffset)
	assert.Equal(t, 2, m.s.sync.CurrentPage())
	assert.Equal(t, viewport.AwaitingScrollSync, m.s.sync.State())
	assert.Equal(t, "2", m.s.sync.PageInput())

	// Navigating afterwards scrolls again.
	m, _ = press(t, m, "n")
	assert.Equal(t, 3, m.s.sync.CurrentPage())
	assert.Equal(t, 12, m.pane.vp.YOffset)
	assert.Equal(t, viewport.AwaitingNavigationSync, m.s.sync.State())
}

func TestPageInput(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		wantPage  int
		wantInput string
	}{
		{"enter commits", []string{"g", "3", "enter"}, 3, "3"},
		{"esc commits", []string{"g", "2", "esc"}, 2, "2"},
		{"out of range reverts", []string{"g", "9", "enter"}, 1, "1"},
		{"zero reverts", []string{"g", "0", "enter"}, 1, "1"},
		{"non numeric reverts", []string{"g", "x", "enter"}, 1, "1"},
		{"empty reverts", []string{"g", "enter"}, 1, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t)
			m, _ = press(t, m, tt.keys...)

			assert.False(t, m.input.Focused())
			assert.Equal(t, tt.wantPage, m.s.sync.CurrentPage())
			assert.Equal(t, tt.wantInput, m.s.sync.PageInput())
		})
	}
}

func TestPageInputKeepsEditsUntilCommitted(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "g", "3")
	assert.True(t, m.input.Focused())
	assert.Equal(t, "3", m.s.sync.PageInput())
	assert.Equal(t, 1, m.s.sync.CurrentPage())

	// Keys go to the field while it is focused.
	m, _ = press(t, m, "n")
	assert.Equal(t, 1, m.s.sync.CurrentPage())
	assert.Equal(t, "3n", m.s.sync.PageInput())
}

func TestZoomRelaysOutAndKeepsPage(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "n", "+")

	assert.Equal(t, 1.25, m.s.sync.Scale())
	assert.Equal(t, 32, m.pane.layout.Width)
	assert.Equal(t, 2, m.s.sync.CurrentPage())
	assert.Equal(t, 7, m.pane.vp.YOffset)

	m, _ = press(t, m, "-", "-")
	assert.Equal(t, 0.75, m.s.sync.Scale())
	assert.Equal(t, 53, m.pane.layout.Width)
	assert.Equal(t, 2, m.s.sync.CurrentPage())
}

func TestZoomClamps(t *testing.T) {
	m, _ := newTestModel(t)

	for i := 0; i < 12; i++ {
		m, _ = press(t, m, "+")
	}
	assert.Equal(t, viewport.MaxScale, m.s.sync.Scale())
	assert.Equal(t, 13, m.pane.layout.Width)

	for i := 0; i < 20; i++ {
		m, _ = press(t, m, "-")
	}
	assert.Equal(t, viewport.MinScale, m.s.sync.Scale())
}

func TestVisualCapture(t *testing.T) {
	m, copied := newTestModel(t)

	// From the page header down to the third rune of "line 2".
	m, _ = press(t, m, "v", "j", "j", "l", "l", "y")

	assert.Equal(t, modeRead, m.mode)
	require.Equal(t, 1, m.s.ix.Len())
	ts, _ := m.s.ix.Last()
	assert.Equal(t, "line 1lin", ts.Text)
	assert.Equal(t, []int{1}, ts.Pages())
	assert.Equal(t, "line 1lin", *copied)
	assert.Contains(t, m.status, "Captured selection-1")

	rows := m.pane.layout.Rows
	assert.False(t, m.s.highlighted(rows[0]), "header is not selectable")
	assert.True(t, m.s.highlighted(rows[1]))
	assert.True(t, m.s.highlighted(rows[2]))
	assert.False(t, m.s.highlighted(rows[3]))
}

func TestVisualCaptureAcrossPages(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "v", "j", "j", "j", "j", "j", "j", "j", "j", "$", "y")

	require.Equal(t, 1, m.s.ix.Len())
	ts, _ := m.s.ix.Last()
	assert.Equal(t, []int{1, 2}, ts.Pages())
	assert.Equal(t, "line 1line 2line 3line 4line 5line 6", ts.Text)
}

func TestVisualEscapeCapturesNothing(t *testing.T) {
	m, copied := newTestModel(t)

	m, _ = press(t, m, "v", "j", "l", "esc")

	assert.Equal(t, modeRead, m.mode)
	assert.Equal(t, 0, m.s.ix.Len())
	assert.Empty(t, *copied)
}

func TestVisualCaptureOfChromeOnly(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, "v", "l", "y")

	assert.Equal(t, 0, m.s.ix.Len())
	assert.Equal(t, "Nothing selected", m.status)
}

func TestUndoAndClearSelections(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "v", "j", "$", "y", "v", "j", "j", "$", "y")
	require.Equal(t, 2, m.s.ix.Len())

	m, _ = press(t, m, "u")
	assert.Equal(t, 1, m.s.ix.Len())
	assert.Equal(t, "Removed selection-2", m.status)

	m, _ = press(t, m, "U")
	assert.Equal(t, 0, m.s.ix.Len())
	assert.Empty(t, m.s.tree.WithAttr(selection.AttrSelectionIDs))

	// Nothing left to undo.
	m, _ = press(t, m, "u")
	assert.Equal(t, 0, m.s.ix.Len())
}

func TestSummarize(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := press(t, m, "s")
	assert.Nil(t, cmd)
	assert.Equal(t, "No selection to summarize", m.status)

	m, _ = press(t, m, "v", "j", "$", "y")
	m, cmd = press(t, m, "s")
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "disabled")

	var got *selection.TextSelection
	m.s.summarizer = summarize.Func(func(ctx context.Context, sel *selection.TextSelection) (string, error) {
		got = sel
		return "one short line", nil
	})
	m, cmd = press(t, m, "s")
	require.NotNil(t, cmd)
	assert.Equal(t, "Summarizing selection-1...", m.status)

	next, _ := m.Update(cmd())
	m = next.(model)
	require.NotNil(t, got)
	assert.Equal(t, "line 1", got.Text)
	assert.Equal(t, "one short line", m.summaries["selection-1"])
	assert.Equal(t, "selection-1: one short line", m.status)
}

func TestSummarizeFailure(t *testing.T) {
	m, _ := newTestModel(t)
	m.s.summarizer = summarize.Func(func(ctx context.Context, sel *selection.TextSelection) (string, error) {
		return "", summarize.ErrNoChoices
	})

	m, _ = press(t, m, "v", "j", "$", "y")
	m, cmd := press(t, m, "s")
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(model)
	assert.Empty(t, m.summaries)
	assert.Contains(t, m.status, "failed")
}

func TestSummarizeCanceledWithProgram(t *testing.T) {
	m, _ := newTestModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.ctx = ctx
	m.s.summarizer = summarize.Func(func(ctx context.Context, sel *selection.TextSelection) (string, error) {
		return "", ctx.Err()
	})

	m, _ = press(t, m, "v", "j", "$", "y")
	m, cmd := press(t, m, "s")
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(model)
	assert.Empty(t, m.summaries)
	assert.Contains(t, m.status, "failed")
	assert.Contains(t, m.status, context.Canceled.Error())
}

func TestTOCJump(t *testing.T) {
	m, _ := newTestModel(t)
	m.s.doc.TOC = []reader.TOCEntry{
		{Title: "Opening", Page: 1},
		{Title: "Middle", Page: 2, Level: 1},
		{Title: "Ending", Page: 3},
	}

	m, _ = press(t, m, "t")
	require.Equal(t, modeTOC, m.mode)
	assert.Equal(t, 0, m.tocIndex)
	assert.Contains(t, m.View(), "Middle")

	m, _ = press(t, m, "j", "j", "j", "enter")
	assert.Equal(t, modeRead, m.mode)
	assert.Equal(t, 3, m.s.sync.CurrentPage())

	// Reopening starts at the entry for the current page.
	m, _ = press(t, m, "t")
	assert.Equal(t, 2, m.tocIndex)
	m, _ = press(t, m, "esc")
	assert.Equal(t, modeRead, m.mode)
}

func TestTOCIgnoredWithoutEntries(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "t")
	assert.Equal(t, modeRead, m.mode)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(numberedLines(12)), 0o644))

	s, err := newSession(testConfig(t), discardLogger(), path, nil)
	require.NoError(t, err)
	m := newModel(s, 80, 8)
	m.copy = func(string) error { return nil }

	m, _ = press(t, m, "n", "n", "v", "j", "$", "y")
	require.Equal(t, 3, m.s.sync.CurrentPage())
	require.Equal(t, 1, m.s.ix.Len())
	oldHash := s.hash

	require.NoError(t, os.WriteFile(path, []byte(numberedLines(3)), 0o644))
	next, cmd := m.Update(reloadMsg{})
	m = next.(model)

	assert.Nil(t, cmd, "no watcher, nothing to wait on")
	assert.Equal(t, "Reloaded", m.status)
	assert.Equal(t, 1, m.s.sync.TotalPages())
	assert.Equal(t, 1, m.s.sync.CurrentPage())
	assert.Equal(t, 0, m.s.ix.Len())
	assert.Equal(t, 5, len(m.pane.layout.Rows))
	assert.NotEqual(t, oldHash, s.hash)
}

func TestReloadFailureKeepsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(numberedLines(12)), 0o644))

	s, err := newSession(testConfig(t), discardLogger(), path, nil)
	require.NoError(t, err)
	m := newModel(s, 80, 8)

	require.NoError(t, os.Remove(path))
	next, _ := m.Update(reloadMsg{})
	m = next.(model)

	assert.Contains(t, m.status, "failed to reload")
	assert.Equal(t, 3, m.s.sync.TotalPages())
}

func TestWindowResize(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "n")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 12})
	m = next.(model)

	assert.Equal(t, 10, m.pane.vp.Height)
	assert.Equal(t, 28, m.pane.layout.Width)
	assert.Equal(t, 2, m.s.sync.CurrentPage())
	top, _ := m.pane.layout.PageTop(2)
	assert.Equal(t, min(top, len(m.pane.layout.Rows)-10), m.pane.vp.YOffset)
}

func TestView(t *testing.T) {
	m, _ := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, "1/3")
	assert.Contains(t, view, "100%")
	assert.Contains(t, view, "0 selections")
	assert.Contains(t, view, "line 1")

	m, _ = press(t, m, "v")
	assert.Contains(t, m.View(), "VISUAL")
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

// Package viewport keeps the current page, the page input text and the zoom
// scale consistent between two drivers: explicit navigation and free
// scrolling.
//
// A page change caused by navigation scrolls the target page into view. A
// page change caused by scrolling must not, or the corrective scroll would
// fire another scroll event and the viewer would oscillate. Sync models this
// as a two-state machine:
//
//	state \ event            navigate                 scroll (page changed)
//	AwaitingNavigationSync   AwaitingNavigationSync   AwaitingScrollSync
//	AwaitingScrollSync       AwaitingNavigationSync   AwaitingScrollSync
//
// Programmatic scrolling happens only on page changes in
// AwaitingNavigationSync.
//
// Sync is not safe for concurrent use; hosts drive it from their event loop.
package viewport

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Zoom limits.
const (
	MinScale     = 0.25
	MaxScale     = 3.0
	ScaleStep    = 0.25
	DefaultScale = 1.0
)

// SyncState records which driver changed the page last.
type SyncState int

const (
	// AwaitingNavigationSync: the last change came from navigation, so page
	// changes are followed by a programmatic scroll.
	AwaitingNavigationSync SyncState = iota
	// AwaitingScrollSync: the last change came from scrolling; the viewport
	// already shows the page.
	AwaitingScrollSync
)

func (s SyncState) String() string {
	switch s {
	case AwaitingNavigationSync:
		return "awaiting-navigation-sync"
	case AwaitingScrollSync:
		return "awaiting-scroll-sync"
	}
	return "unknown"
}

// Event is an input to the state machine.
type Event int

const (
	EventNavigate Event = iota
	EventScroll
)

func (e Event) String() string {
	if e == EventScroll {
		return "scroll"
	}
	return "navigate"
}

// transitions is the machine's table, indexed by [state][event].
var transitions = [2][2]SyncState{
	AwaitingNavigationSync: {EventNavigate: AwaitingNavigationSync, EventScroll: AwaitingScrollSync},
	AwaitingScrollSync:     {EventNavigate: AwaitingNavigationSync, EventScroll: AwaitingScrollSync},
}

// Scroller is the scroll container a host hands to Sync.
type Scroller interface {
	// ScrollOffset returns the container's current scroll offset.
	ScrollOffset() float64
	// PageOffset returns the distance from the container's visible top to
	// the top of page n. ok is false if page n is not rendered.
	PageOffset(n int) (offset float64, ok bool)
	// ScrollTo moves the container to an absolute offset.
	ScrollTo(offset float64)
}

// Sync is the page and zoom model of one viewer.
type Sync struct {
	currentPage int
	pageInput   string
	totalPages  int // 0 until a document is loaded
	scale       float64
	state       SyncState

	scroller Scroller
	onChange func()
	log      *slog.Logger
}

// New returns a Sync on page 1 at the default scale. scroller may be nil, in
// which case navigation never scrolls.
func New(scroller Scroller, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		currentPage: 1,
		pageInput:   "1",
		scale:       DefaultScale,
		state:       AwaitingNavigationSync,
		scroller:    scroller,
		log:         logger,
	}
}

// SetScroller replaces the scroll container.
func (s *Sync) SetScroller(scroller Scroller) { s.scroller = scroller }

// OnChange registers fn to run after every change of page or scale, and
// after a rejected page input is put back to the current page.
func (s *Sync) OnChange(fn func()) { s.onChange = fn }

func (s *Sync) CurrentPage() int  { return s.currentPage }
func (s *Sync) TotalPages() int   { return s.totalPages }
func (s *Sync) Scale() float64    { return s.scale }
func (s *Sync) PageInput() string { return s.pageInput }
func (s *Sync) State() SyncState  { return s.state }

// maxPage is the upper navigation bound; 1 while the page count is unknown.
func (s *Sync) maxPage() int {
	if s.totalPages < 1 {
		return 1
	}
	return s.totalPages
}

// CanNext reports whether Next would move.
func (s *Sync) CanNext() bool { return s.currentPage < s.maxPage() }

// CanPrevious reports whether Previous would move.
func (s *Sync) CanPrevious() bool { return s.currentPage > 1 }

// CanZoomIn reports whether ZoomIn would change the scale.
func (s *Sync) CanZoomIn() bool { return s.scale < MaxScale }

// CanZoomOut reports whether ZoomOut would change the scale.
func (s *Sync) CanZoomOut() bool { return s.scale > MinScale }

// apply runs ev through the machine, then moves to page. Navigation-driven
// page changes are scrolled into view.
func (s *Sync) apply(ev Event, page int) {
	prev := s.state
	s.state = transitions[s.state][ev]
	if prev != s.state {
		s.log.Debug("viewport sync transition", "from", prev, "to", s.state, "event", ev)
	}

	if page == s.currentPage {
		return
	}
	s.currentPage = page
	s.pageInput = strconv.Itoa(page)
	if s.state == AwaitingNavigationSync {
		s.scrollIntoView()
	}
	s.changed()
}

// scrollIntoView aligns the current page's top with the container's top.
func (s *Sync) scrollIntoView() {
	if s.scroller == nil {
		return
	}
	offset, ok := s.scroller.PageOffset(s.currentPage)
	if !ok {
		return
	}
	s.scroller.ScrollTo(s.scroller.ScrollOffset() + offset)
}

func (s *Sync) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// OnDocumentLoaded records the page count, pulls the current page into range
// and, unless scrolling drove the last change, scrolls it into view. It runs
// again after every reload.
func (s *Sync) OnDocumentLoaded(totalPages int) {
	if totalPages < 0 {
		totalPages = 0
	}
	s.totalPages = totalPages
	if s.currentPage > s.maxPage() {
		s.currentPage = s.maxPage()
	}
	s.pageInput = strconv.Itoa(s.currentPage)
	if s.state != AwaitingScrollSync {
		s.scrollIntoView()
	}
	s.log.Debug("document loaded", "pages", totalPages, "page", s.currentPage)
	s.changed()
}

// Next moves one page forward. At the last page it only records the
// navigation.
func (s *Sync) Next() {
	s.apply(EventNavigate, min(s.currentPage+1, s.maxPage()))
}

// Previous moves one page back. At page 1 it only records the navigation.
func (s *Sync) Previous() {
	s.apply(EventNavigate, max(s.currentPage-1, 1))
}

// JumpToPage moves to page n if it exists. Otherwise the page stays and the
// page input is reset to it.
func (s *Sync) JumpToPage(n int) {
	if n < 1 || n > s.maxPage() {
		s.log.Debug("rejected page jump", "page", n, "total", s.totalPages)
		s.apply(EventNavigate, s.currentPage)
		s.resetPageInput()
		return
	}
	s.apply(EventNavigate, n)
	s.pageInput = strconv.Itoa(n)
}

// JumpToPageText is JumpToPage for user text; anything that is not an
// integer is rejected like an out of range page.
func (s *Sync) JumpToPageText(text string) {
	n, ok := parsePage(text)
	if !ok {
		n = 0
	}
	s.JumpToPage(n)
}

// EditPageInput stores raw input text without validating it.
func (s *Sync) EditPageInput(text string) {
	s.pageInput = text
	s.apply(EventNavigate, s.currentPage)
}

// CommitPageInput validates the page input when the user confirms it or the
// field loses focus.
func (s *Sync) CommitPageInput() {
	n, ok := parsePage(s.pageInput)
	if ok && n != s.currentPage {
		s.JumpToPage(n)
		return
	}
	s.resetPageInput()
}

// resetPageInput shows the current page in the input again. Hosts that mirror
// the input in a widget learn of it through OnChange.
func (s *Sync) resetPageInput() {
	s.pageInput = strconv.Itoa(s.currentPage)
	s.changed()
}

func parsePage(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

// OnScroll resolves the page closest to viewportCenter and moves to it as a
// scroll-driven change, which never triggers a programmatic scroll.
// pageCenters holds the center of each page in page order, in the same
// coordinates as viewportCenter. Scroll events before a document is loaded
// are ignored.
func (s *Sync) OnScroll(viewportCenter float64, pageCenters []float64) {
	if s.totalPages < 1 {
		return
	}
	page, ok := ResolvePage(viewportCenter, pageCenters)
	if !ok || page > s.totalPages || page == s.currentPage {
		return
	}
	s.apply(EventScroll, page)
}

// ResolvePage returns the 1-based page whose center is closest to
// viewportCenter. Pages are scanned in order with a strict comparison, so an
// exact tie goes to the lower page. Unmeasurable centers (NaN) are skipped.
func ResolvePage(viewportCenter float64, pageCenters []float64) (int, bool) {
	best, bestDist := 0, math.Inf(1)
	for i, c := range pageCenters {
		if math.IsNaN(c) {
			continue
		}
		if d := math.Abs(c - viewportCenter); d < bestDist {
			best, bestDist = i+1, d
		}
	}
	return best, best > 0
}

// ZoomIn enlarges by one step, up to MaxScale.
func (s *Sync) ZoomIn() { s.SetScale(s.scale + ScaleStep) }

// ZoomOut shrinks by one step, down to MinScale.
func (s *Sync) ZoomOut() { s.SetScale(s.scale - ScaleStep) }

// SetScale sets the scale, snapped to the step grid and clamped.
func (s *Sync) SetScale(scale float64) {
	if math.IsNaN(scale) {
		return
	}
	scale = math.Round(scale/ScaleStep) * ScaleStep
	scale = math.Max(MinScale, math.Min(MaxScale, scale))
	if scale == s.scale {
		return
	}
	s.scale = scale
	s.log.Debug("zoom", "scale", scale)
	s.changed()
}

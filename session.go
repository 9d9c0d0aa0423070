package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/metcalfc/folio/internal/config"
	"github.com/metcalfc/folio/internal/dom"
	"github.com/metcalfc/folio/internal/reader"
	"github.com/metcalfc/folio/internal/render"
	"github.com/metcalfc/folio/internal/selection"
	"github.com/metcalfc/folio/internal/state"
	"github.com/metcalfc/folio/internal/summarize"
	"github.com/metcalfc/folio/internal/viewport"
	"github.com/metcalfc/folio/internal/watch"
)

// session is everything a viewer front end drives: the loaded document, its
// page tree, the page/zoom model and the captured selections.
type session struct {
	cfg  *config.Config
	log  *slog.Logger
	path string // empty for stdin
	hash string

	doc  *reader.Document
	tree *dom.Document
	ix   *selection.Indexer
	sync *viewport.Sync

	store      *state.StateStore
	summarizer summarize.Summarizer
	watcher    *watch.Watcher
}

// openDocument loads path, or stdin when path is empty, and returns the
// content hash used to key saved state.
func openDocument(path string, stdin io.Reader, opts reader.Options) (*reader.Document, string, error) {
	if path != "" {
		doc, err := reader.Load(path, opts)
		if err != nil {
			return nil, "", err
		}
		hash, err := state.ComputeHash(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash %s: %w", path, err)
		}
		return doc, hash, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read stdin: %w", err)
	}
	doc := reader.FromText("stdin", string(data), opts)
	if !doc.HasText() {
		return nil, "", reader.ErrNoText
	}
	hash, err := state.HashReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return doc, hash, nil
}

func newSession(cfg *config.Config, log *slog.Logger, path string, stdin io.Reader) (*session, error) {
	doc, hash, err := openDocument(path, stdin, reader.Options{LinesPerPage: cfg.LinesPerPage})
	if err != nil {
		return nil, err
	}

	tree := render.Build(doc, cfg.TextLayerClass)
	s := &session{
		cfg:  cfg,
		log:  log,
		path: path,
		hash: hash,
		doc:  doc,
		tree: tree,
		ix:   selection.New(tree, log),
		sync: viewport.New(nil, log),
	}
	s.sync.SetScale(cfg.Scale)
	s.sync.OnDocumentLoaded(tree.PageCount())

	sum, err := summarize.NewOpenAI(summarize.OpenAIConfig{
		APIKey:     cfg.Summarize.APIKey,
		Model:      cfg.Summarize.Model,
		BaseURL:    cfg.Summarize.BaseURL,
		MaxRetries: cfg.Summarize.MaxRetries,
		Timeout:    time.Duration(cfg.Summarize.TimeoutSeconds) * time.Second,
	}, log)
	switch {
	case errors.Is(err, summarize.ErrNoAPIKey):
		log.Info("summarization disabled", "reason", err)
	case err != nil:
		return nil, err
	default:
		s.summarizer = sum
	}

	log.Info("opened document", "title", doc.Title, "pages", tree.PageCount(), "formats", len(reader.SupportedFormats()))
	return s, nil
}

// restore opens the state store and applies the saved view. Explicit page and
// scale choices win over saved ones; fresh ignores saved state entirely.
func (s *session) restore(fresh bool, page int, scale float64) {
	store, err := state.NewStateStore(s.cfg.StateDir)
	if err != nil {
		s.log.Warn("state store unavailable", "error", err)
	} else {
		s.store = store
	}

	if s.store != nil && !fresh {
		if v, ok := s.store.Get(s.hash); ok {
			if v.Scale > 0 {
				s.sync.SetScale(v.Scale)
			}
			s.sync.JumpToPage(v.Page)
		}
	}
	if scale > 0 {
		s.sync.SetScale(scale)
	}
	if page > 0 {
		s.sync.JumpToPage(page)
	}
	s.sync.OnChange(s.save)
}

// watch starts reporting changes to the document file.
func (s *session) watch() (<-chan struct{}, error) {
	if s.path == "" || !s.cfg.Watch {
		return nil, nil
	}
	w, err := watch.New(s.path, watch.DefaultDebounce, s.log)
	if err != nil {
		return nil, err
	}
	s.watcher = w
	return w.Changes(), nil
}

// reload reads the document again and swaps in a new page tree. Selections
// belong to the old tree, so they are removed first. The caller lays out the
// new tree and reports its page count to the viewport model.
func (s *session) reload() error {
	doc, hash, err := openDocument(s.path, nil, reader.Options{LinesPerPage: s.cfg.LinesPerPage})
	if err != nil {
		return fmt.Errorf("failed to reload document: %w", err)
	}
	s.doc = doc
	s.hash = hash
	s.tree = render.Build(doc, s.cfg.TextLayerClass)
	s.ix.Reset(s.tree)
	s.log.Info("reloaded document", "pages", s.tree.PageCount())
	return nil
}

// capture records r as a selection and hands its text to toClipboard.
func (s *session) capture(r dom.Range, toClipboard func(string) error) (*selection.TextSelection, error) {
	sel := &dom.Selection{}
	sel.AddRange(r)
	return s.ix.CreateSelection(sel, func(ts *selection.TextSelection) {
		if toClipboard == nil {
			return
		}
		if err := toClipboard(ts.Text); err != nil {
			s.log.Debug("clipboard unavailable", "error", err)
		}
	})
}

// highlighted reports whether a laid out row belongs to a captured selection.
func (s *session) highlighted(row render.Row) bool {
	el := row.Node
	if s.tree.IsText(el) {
		el = s.tree.ParentElement(el)
	}
	return s.tree.HasClass(el, selection.ClassHighlighted)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// summarize runs the summarizer with the configured timeout.
func (s *session) summarize(ctx context.Context, ts *selection.TextSelection) (string, error) {
	if s.summarizer == nil {
		return "", summarize.ErrNoAPIKey
	}
	if t := s.cfg.Summarize.TimeoutSeconds; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer cancel()
	}
	return s.summarizer.Summarize(ctx, ts)
}

// save records the current view.
func (s *session) save() {
	if s.store == nil || s.hash == "" {
		return
	}
	v := state.ViewState{Page: s.sync.CurrentPage(), Scale: s.sync.Scale()}
	if err := s.store.Set(s.hash, v); err != nil {
		s.log.Warn("failed to save view", "error", err)
	}
}

func (s *session) close() {
	s.save()
	if s.watcher != nil {
		s.watcher.Close()
	}
}

package main

import "github.com/metcalfc/folio/internal/viewport"

// pageField connects an editable page number widget to the viewport model.
// Text the field writes into the widget itself is not an edit, even when the
// widget reports it through its change callback.
type pageField struct {
	sync       *viewport.Sync
	refreshing bool
}

// edited forwards a user edit of the widget text.
func (f *pageField) edited(text string) {
	if f.refreshing {
		return
	}
	f.sync.EditPageInput(text)
}

// show writes the model's page input to the widget through set when the
// widget's current text differs.
func (f *pageField) show(current string, set func(string)) {
	want := f.sync.PageInput()
	if current == want {
		return
	}
	f.refreshing = true
	defer func() { f.refreshing = false }()
	set(want)
}

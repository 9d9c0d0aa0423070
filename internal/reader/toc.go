package reader

// TOCEntry is one table of contents entry pointing at a page.
type TOCEntry struct {
	Title string
	Page  int
	Level int
}

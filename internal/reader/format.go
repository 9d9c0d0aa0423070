package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format defines a file format reader that produces pages.
type Format interface {
	Name() string
	Extensions() []string
	Load(filename string, opts Options) (*Document, error)
}

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Load reads a file with its registered format, or as plain text.
func Load(filename string, opts Options) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var (
		doc *Document
		err error
	)
	if f := lookup(ext); f != nil {
		doc, err = f.Load(filename, opts)
	} else {
		doc, err = loadText(filename, opts)
	}
	if err != nil {
		return nil, err
	}
	if !doc.HasText() {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}
	return doc, nil
}

func lookup(ext string) Format {
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	return nil
}

func loadText(filename string, opts Options) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return FromText(title(filename), string(data), opts), nil
}

func title(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

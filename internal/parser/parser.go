package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNoLocator is returned when no function locator is registered for a file.
	ErrNoLocator = errors.New("no function locator registered")
	// ErrInvalidOffset is returned for offsets that cannot address the source.
	ErrInvalidOffset = errors.New("invalid offset")
)

// FunctionLocator defines the interface each language must implement
type FunctionLocator interface {
	// Language returns the language name (e.g., "javascript", "go")
	Language() string

	// Extensions returns file extensions this locator handles
	Extensions() []string

	// EnclosingFunction returns the innermost function-like construct that
	// covers offset, or nil when the offset is not inside one.
	EnclosingFunction(ctx context.Context, filename string, content []byte, offset int) (*Function, error)
}

// Registry holds all registered function locators
type Registry struct {
	locators  map[string]FunctionLocator // language name -> locator
	extToLang map[string]string          // extension -> language name
}

// NewRegistry creates a new locator registry
func NewRegistry() *Registry {
	return &Registry{
		locators:  make(map[string]FunctionLocator),
		extToLang: make(map[string]string),
	}
}

// Register adds a function locator to the registry. A later registration for
// an extension replaces the earlier one.
func (r *Registry) Register(l FunctionLocator) {
	lang := l.Language()
	r.locators[lang] = l
	for _, ext := range l.Extensions() {
		r.extToLang[strings.ToLower(ext)] = lang
	}
}

// LocatorForFile returns the locator that handles filename, if any.
func (r *Registry) LocatorForFile(filename string) (FunctionLocator, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	locator, ok := r.locators[lang]
	return locator, ok
}

// Languages returns the registered language names in sorted order.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.locators))
	for lang := range r.locators {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// SupportedExtensions returns all supported file extensions in sorted order.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Locate finds the function enclosing offset in content. It returns
// ErrNoLocator when the file's language has no registered capability, and a
// nil Function when the offset is outside every function-like construct.
func (r *Registry) Locate(ctx context.Context, filename string, content []byte, offset int) (*Function, error) {
	locator, ok := r.LocatorForFile(filename)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoLocator, filepath.Base(filename))
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	if len(content) == 0 {
		return nil, nil
	}
	if offset >= len(content) {
		offset = len(content) - 1
	}

	fn, err := locator.EnclosingFunction(ctx, filename, content, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
	}
	if fn != nil {
		fn.Name = strings.TrimSpace(fn.Name)
		if fn.Name == "" {
			fn.Name = AnonymousName
		}
		if fn.Language == "" {
			fn.Language = locator.Language()
		}
	}
	return fn, nil
}

// OffsetForPosition converts a 1-based line and column into a byte offset.
// A column of zero addresses the first non-blank byte of the line.
func OffsetForPosition(content []byte, line, column int) (int, error) {
	if line <= 0 || column < 0 {
		return 0, fmt.Errorf("%w: line %d column %d", ErrInvalidOffset, line, column)
	}

	lineStart := 0
	for current := 1; current < line; current++ {
		idx := indexByteFrom(content, '\n', lineStart)
		if idx < 0 {
			return 0, fmt.Errorf("%w: line %d is past the end of the file", ErrInvalidOffset, line)
		}
		lineStart = idx + 1
	}

	lineEnd := indexByteFrom(content, '\n', lineStart)
	if lineEnd < 0 {
		lineEnd = len(content)
	}

	if column == 0 {
		offset := lineStart
		for offset < lineEnd && (content[offset] == ' ' || content[offset] == '\t') {
			offset++
		}
		return offset, nil
	}

	offset := lineStart + column - 1
	if offset > lineEnd {
		return 0, fmt.Errorf("%w: column %d is past the end of line %d", ErrInvalidOffset, column, line)
	}
	return offset, nil
}

func indexByteFrom(content []byte, b byte, from int) int {
	for i := from; i < len(content); i++ {
		if content[i] == b {
			return i
		}
	}
	return -1
}

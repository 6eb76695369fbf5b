package languages

import (
	"fmt"
	"strings"

	"github.com/kirikodevv/grabctx/internal/parser"
)

// DefaultLanguages are enabled when no language filter is configured. The
// helper package only understands JavaScript and TypeScript sources.
var DefaultLanguages = []string{"javascript", "typescript"}

var aliases = map[string]string{
	"javascript": "javascript",
	"js":         "javascript",
	"typescript": "typescript",
	"ts":         "typescript",
	"go":         "go",
	"golang":     "go",
	"python":     "python",
	"py":         "python",
	"ruby":       "ruby",
	"rb":         "ruby",
}

var constructors = map[string]func() parser.FunctionLocator{
	"javascript": func() parser.FunctionLocator { return NewJavaScriptLocator() },
	"typescript": func() parser.FunctionLocator { return NewTypeScriptLocator() },
	"go":         func() parser.FunctionLocator { return NewGoLocator() },
	"python":     func() parser.FunctionLocator { return NewPythonLocator() },
	"ruby":       func() parser.FunctionLocator { return NewRubyLocator() },
}

// NewDefaultRegistry creates a registry with the default language locators
func NewDefaultRegistry() *parser.Registry {
	r, _ := NewRegistry(DefaultLanguages)
	return r
}

// NewRegistry creates a registry with the named language locators. An empty
// list enables DefaultLanguages.
func NewRegistry(langs []string) (*parser.Registry, error) {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	r := parser.NewRegistry()
	seen := make(map[string]bool, len(langs))
	for _, lang := range langs {
		canonical, err := CanonicalLanguage(lang)
		if err != nil {
			return nil, err
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		r.Register(constructors[canonical]())
	}
	return r, nil
}

// CanonicalLanguage maps a language name or alias to its registry name.
func CanonicalLanguage(lang string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	canonical, ok := aliases[key]
	if !ok {
		return "", fmt.Errorf("unsupported language %q (supported: javascript, typescript, go, python, ruby)", lang)
	}
	return canonical, nil
}

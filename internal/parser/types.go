package parser

// AnonymousName is reported for function-like constructs that carry no name.
const AnonymousName = "anonymous"

// Function describes the innermost function-like construct enclosing an offset.
type Function struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"` // tree-sitter node type, e.g. "arrow_function"
	Language string `json:"language"`
	Start    int    `json:"start"` // byte offset, inclusive
	End      int    `json:"end"`   // byte offset, exclusive
	Line     int    `json:"line"`  // 1-based line of Start
}

// IsAnonymous reports whether the construct had no declared name.
func (f *Function) IsAnonymous() bool {
	return f == nil || f.Name == AnonymousName
}

// Contains reports whether offset falls inside the function's span.
func (f *Function) Contains(offset int) bool {
	return f != nil && offset >= f.Start && offset < f.End
}

package languages

import (
	"context"

	"github.com/kirikodevv/grabctx/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var scriptFunctionKinds = []string{
	"function_declaration",
	"generator_function_declaration",
	"function",
	"function_expression",
	"generator_function",
	"arrow_function",
	"method_definition",
}

// JavaScriptLocator finds enclosing functions in JavaScript source files
type JavaScriptLocator struct {
	parser *sitter.Parser
	tree   treeLocator
}

// NewJavaScriptLocator creates a new JavaScript locator
func NewJavaScriptLocator() *JavaScriptLocator {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &JavaScriptLocator{
		parser: p,
		tree:   newTreeLocator("javascript", scriptFunctionKinds, scriptFunctionName),
	}
}

func (j *JavaScriptLocator) Language() string {
	return "javascript"
}

func (j *JavaScriptLocator) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

func (j *JavaScriptLocator) EnclosingFunction(ctx context.Context, _ string, content []byte, offset int) (*parser.Function, error) {
	return j.tree.locate(ctx, j.parser, content, offset)
}

// TypeScriptLocator finds enclosing functions in TypeScript and TSX files
type TypeScriptLocator struct {
	tsParser  *sitter.Parser
	tsxParser *sitter.Parser
	tree      treeLocator
}

// NewTypeScriptLocator creates a new TypeScript locator
func NewTypeScriptLocator() *TypeScriptLocator {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())

	tsxp := sitter.NewParser()
	tsxp.SetLanguage(tsx.GetLanguage())

	return &TypeScriptLocator{
		tsParser:  ts,
		tsxParser: tsxp,
		tree:      newTreeLocator("typescript", scriptFunctionKinds, scriptFunctionName),
	}
}

func (t *TypeScriptLocator) Language() string {
	return "typescript"
}

func (t *TypeScriptLocator) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

func (t *TypeScriptLocator) EnclosingFunction(ctx context.Context, filename string, content []byte, offset int) (*parser.Function, error) {
	p := t.tsParser
	if hasSuffixAny(filename, ".tsx") {
		p = t.tsxParser
	}
	return t.tree.locate(ctx, p, content, offset)
}

// scriptFunctionName mirrors how editors name JS callables: declarations and
// methods use their own name, while unnamed expressions take the name of the
// variable, property or assignment target they are bound to.
func scriptFunctionName(node *sitter.Node, content []byte) string {
	if name := fieldContent(node, "name", content); name != "" {
		return name
	}

	parent := node.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "variable_declarator":
		if nameNode := parent.ChildByFieldName("name"); nameNode != nil && nameNode.Type() == "identifier" {
			return nameNode.Content(content)
		}
	case "pair":
		return trimQuotes(fieldContent(parent, "key", content))
	case "public_field_definition", "field_definition":
		if name := fieldContent(parent, "name", content); name != "" {
			return name
		}
		return fieldContent(parent, "property", content)
	case "assignment_expression":
		left := parent.ChildByFieldName("left")
		if left == nil {
			return ""
		}
		if left.Type() == "member_expression" {
			return fieldContent(left, "property", content)
		}
		if left.Type() == "identifier" {
			return left.Content(content)
		}
	}
	return ""
}

func trimQuotes(raw string) string {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

package languages

import (
	"context"

	"github.com/kirikodevv/grabctx/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoLocator finds enclosing functions in Go source files
type GoLocator struct {
	parser *sitter.Parser
	tree   treeLocator
}

// NewGoLocator creates a new Go locator
func NewGoLocator() *GoLocator {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoLocator{
		parser: p,
		tree: newTreeLocator("go", []string{
			"function_declaration",
			"method_declaration",
			"func_literal",
		}, goFunctionName),
	}
}

func (g *GoLocator) Language() string {
	return "go"
}

func (g *GoLocator) Extensions() []string {
	return []string{".go"}
}

func (g *GoLocator) EnclosingFunction(ctx context.Context, _ string, content []byte, offset int) (*parser.Function, error) {
	return g.tree.locate(ctx, g.parser, content, offset)
}

// goFunctionName names func literals after the variable they initialize.
func goFunctionName(node *sitter.Node, content []byte) string {
	if name := fieldContent(node, "name", content); name != "" {
		return name
	}
	if node.Type() != "func_literal" {
		return ""
	}

	parent := node.Parent()
	if parent != nil && parent.Type() == "expression_list" {
		parent = parent.Parent()
	}
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "short_var_declaration", "assignment_statement":
		left := parent.ChildByFieldName("left")
		if left != nil && left.NamedChildCount() == 1 {
			return left.NamedChild(0).Content(content)
		}
	case "var_spec":
		return fieldContent(parent, "name", content)
	}
	return ""
}

package languages

import (
	"context"

	"github.com/kirikodevv/grabctx/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonLocator finds enclosing functions in Python source files
type PythonLocator struct {
	parser *sitter.Parser
	tree   treeLocator
}

// NewPythonLocator creates a new Python locator
func NewPythonLocator() *PythonLocator {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonLocator{
		parser: p,
		tree:   newTreeLocator("python", []string{"function_definition", "lambda"}, pythonFunctionName),
	}
}

func (p *PythonLocator) Language() string {
	return "python"
}

func (p *PythonLocator) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonLocator) EnclosingFunction(ctx context.Context, _ string, content []byte, offset int) (*parser.Function, error) {
	return p.tree.locate(ctx, p.parser, content, offset)
}

func pythonFunctionName(node *sitter.Node, content []byte) string {
	if name := fieldContent(node, "name", content); name != "" {
		return name
	}
	parent := node.Parent()
	if node.Type() == "lambda" && parent != nil && parent.Type() == "assignment" {
		left := parent.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			return left.Content(content)
		}
	}
	return ""
}

package languages

import (
	"context"

	"github.com/kirikodevv/grabctx/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// RubyLocator finds enclosing methods in Ruby source files
type RubyLocator struct {
	parser *sitter.Parser
	tree   treeLocator
}

// NewRubyLocator creates a new Ruby locator
func NewRubyLocator() *RubyLocator {
	p := sitter.NewParser()
	p.SetLanguage(ruby.GetLanguage())
	return &RubyLocator{
		parser: p,
		tree:   newTreeLocator("ruby", []string{"method", "singleton_method", "lambda"}, rubyFunctionName),
	}
}

func (r *RubyLocator) Language() string {
	return "ruby"
}

func (r *RubyLocator) Extensions() []string {
	return []string{".rb", ".rake"}
}

func (r *RubyLocator) EnclosingFunction(ctx context.Context, _ string, content []byte, offset int) (*parser.Function, error) {
	return r.tree.locate(ctx, r.parser, content, offset)
}

func rubyFunctionName(node *sitter.Node, content []byte) string {
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

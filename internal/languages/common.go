package languages

import (
	"context"
	"strings"
	"sync"

	"github.com/kirikodevv/grabctx/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// nameFunc extracts the declared name of a function-like node. An empty
// result means the construct is anonymous.
type nameFunc func(node *sitter.Node, content []byte) string

// treeLocator is the shared tree-sitter implementation behind every language.
// Parsers are not safe for concurrent use, so parses are serialized.
type treeLocator struct {
	mu       *sync.Mutex
	language string
	kinds    map[string]bool
	name     nameFunc
}

func newTreeLocator(language string, kinds []string, name nameFunc) treeLocator {
	set := make(map[string]bool, len(kinds))
	for _, kind := range kinds {
		set[kind] = true
	}
	return treeLocator{mu: &sync.Mutex{}, language: language, kinds: set, name: name}
}

func (t treeLocator) locate(ctx context.Context, p *sitter.Parser, content []byte, offset int) (*parser.Function, error) {
	t.mu.Lock()
	tree, err := p.ParseCtx(ctx, nil, content)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	path := pathToOffset(tree.RootNode(), uint32(offset))
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		if !t.kinds[node.Type()] {
			continue
		}
		return &parser.Function{
			Name:     strings.TrimSpace(t.name(node, content)),
			Kind:     node.Type(),
			Language: t.language,
			Start:    int(node.StartByte()),
			End:      int(node.EndByte()),
			Line:     int(node.StartPoint().Row) + 1,
		}, nil
	}
	return nil, nil
}

// pathToOffset returns the chain of nodes from root down to the innermost
// node whose byte range covers offset. The root is always the first element.
func pathToOffset(root *sitter.Node, offset uint32) []*sitter.Node {
	path := []*sitter.Node{root}
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if child.StartByte() <= offset && offset < child.EndByte() {
				next = child
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		node = next
	}
}

func fieldContent(node *sitter.Node, field string, content []byte) string {
	if node == nil {
		return ""
	}
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(content)
}

func hasSuffixAny(filename string, suffixes ...string) bool {
	lower := strings.ToLower(filename)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

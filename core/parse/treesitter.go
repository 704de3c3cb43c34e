//go:build cgo

package parse

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/codepulse/schema"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// registerProcedural binds the tree-sitter grammars to their extensions.
func registerProcedural(r *Registry) {
	r.Register(newTreeSitterParser(pythonGrammar), ".py", ".pyw")
	r.Register(newTreeSitterParser(goGrammar), ".go")
	r.Register(newTreeSitterParser(javascriptGrammar), ".js", ".mjs", ".cjs", ".jsx")
	r.Register(newTreeSitterParser(typescriptGrammar(schema.TypeScript, typescript.GetLanguage)), ".ts", ".mts", ".cts")
	r.Register(newTreeSitterParser(typescriptGrammar(schema.TSX, tsx.GetLanguage)), ".tsx")
	r.Register(newTreeSitterParser(javaGrammar), ".java")
	r.Register(newTreeSitterParser(rustGrammar), ".rs")
}

// treeSitterParser measures procedural languages from a concrete syntax tree.
// A fresh sitter.Parser is created per call, so one value serves all workers.
type treeSitterParser struct {
	g         *grammar
	cognitive CognitiveCalculator
}

var _ Parser = &treeSitterParser{} // Compile-time check

func newTreeSitterParser(g *grammar) *treeSitterParser {
	return &treeSitterParser{g: g}
}

// Language implements the Parser interface.
func (p *treeSitterParser) Language() schema.Language {
	return p.g.lang
}

// Analyze implements the Parser interface.
func (p *treeSitterParser) Analyze(ctx context.Context, source []byte) (*Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.g.sitter())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &schema.ParseError{Reason: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &schema.ParseError{Reason: syntaxErrorReason(root)}
	}
	if depth := maxDepth(root); depth > schema.MaxSyntaxDepth {
		return nil, &schema.ParseError{Reason: fmt.Sprintf("syntax depth %d exceeds %d", depth, schema.MaxSyntaxDepth)}
	}

	res := &Result{}
	module := Unit{Node: root, Source: source, g: p.g}
	if d := decisionPoints(module); d > 0 {
		res.Functions = append(res.Functions, FunctionResult{
			Name:       schema.ModulePseudoFunction,
			StartLine:  1,
			EndLine:    int(root.EndPoint().Row) + 1,
			Cyclomatic: 1 + d,
			Cognitive:  p.cognitive.Calculate(module),
		})
	}

	var named []namedUnit
	p.collect(root, source, nil, &named)
	for _, nu := range named {
		u := Unit{Node: nu.node, Source: source, Name: nu.name, g: p.g}
		res.Functions = append(res.Functions, FunctionResult{
			Name:       nu.qualified,
			StartLine:  int(nu.node.StartPoint().Row) + 1,
			EndLine:    int(nu.node.EndPoint().Row) + 1,
			Cyclomatic: 1 + decisionPoints(u),
			Cognitive:  p.cognitive.Calculate(u),
		})
	}
	res.totals()
	return res, nil
}

type namedUnit struct {
	node      *sitter.Node
	name      string
	qualified string
}

// collect finds named functions in source order, qualifying each with its
// enclosing classes, receiver and outer functions.
func (p *treeSitterParser) collect(n *sitter.Node, src []byte, scope []string, out *[]namedUnit) {
	g := p.g
	t := n.Type()
	if g.classes.has(t) {
		if name := g.scopeName(n, src); name != "" {
			scope = append(slices.Clip(scope), name)
		}
	}
	if g.functions.has(t) {
		simple := nameField(n, src)
		if simple == "" {
			simple = "<anonymous>"
		}
		qual := scope
		if g.receiver != nil {
			if recv := g.receiver(n, src); recv != "" {
				qual = append(slices.Clip(scope), recv)
			}
		}
		qual = append(slices.Clip(qual), simple)
		*out = append(*out, namedUnit{node: n, name: simple, qualified: strings.Join(qual, ".")})
		scope = qual
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p.collect(n.NamedChild(i), src, scope, out)
	}
}

// maxDepth measures the named-node depth of the tree without recursion.
func maxDepth(root *sitter.Node) int {
	type frame struct {
		node  *sitter.Node
		depth int
	}
	deepest := 0
	stack := []frame{{root, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > deepest {
			deepest = f.depth
			if deepest > schema.MaxSyntaxDepth {
				return deepest
			}
		}
		for i := 0; i < int(f.node.NamedChildCount()); i++ {
			stack = append(stack, frame{f.node.NamedChild(i), f.depth + 1})
		}
	}
	return deepest
}

// syntaxErrorReason locates the first error or missing node for the message.
func syntaxErrorReason(root *sitter.Node) string {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type() == "ERROR" || n.IsMissing() {
			return fmt.Sprintf("syntax error at line %d", n.StartPoint().Row+1)
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c.HasError() || c.IsMissing() {
				stack = append(stack, c)
			}
		}
	}
	return "syntax error"
}

//go:build cgo

package parse

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Unit is one function body, or the top-level code of a file, to be measured.
type Unit struct {
	Node   *sitter.Node
	Source []byte
	Name   string // Simple name used to detect direct recursion; empty for module code

	g *grammar
}

// isRecursive reports whether call invokes the unit itself by name.
func (u Unit) isRecursive(call *sitter.Node) bool {
	return u.Name != "" && u.g.calleeName(call, u.Source) == u.Name
}

// CognitiveCalculator scores how hard a unit is to read. Branches cost one plus
// the nesting level they appear at, boolean runs and direct recursion cost one,
// and anonymous functions deepen nesting without a cost of their own.
type CognitiveCalculator struct{}

// Calculate returns the cognitive complexity of the unit. Nesting starts at 0.
func (CognitiveCalculator) Calculate(u Unit) int {
	w := &cognitiveWalker{u: u}
	w.children(u.Node, 0, false)
	return w.score
}

type cognitiveWalker struct {
	u     Unit
	score int
}

func (w *cognitiveWalker) children(n *sitter.Node, level int, inRun bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), level, inRun)
	}
}

func (w *cognitiveWalker) visit(n *sitter.Node, level int, inRun bool) {
	g, src := w.u.g, w.u.Source
	t := n.Type()
	switch {
	case g.functions.has(t):
		return
	case g.anonymous.has(t):
		w.children(n, level+1, false)
		return
	case g.ifs.has(t):
		w.ifChain(n, level)
		return
	case g.loops.has(t):
		w.score += 1 + level
		w.loop(n, level)
		return
	case g.handlers.has(t), g.ternaries.has(t), g.switches.has(t):
		w.score += 1 + level
		w.children(n, level+1, false)
		return
	case g.calls.has(t):
		if w.u.isRecursive(n) {
			w.score++
		}
	}

	switch {
	case g.isBoolean(n, src):
		if !inRun {
			w.score++
		}
		w.children(n, level, true)
	case g.isTransparent(n, src):
		w.children(n, level, inRun)
	default:
		w.children(n, level, false)
	}
}

// ifChain scores an if and every elif, else-if and else that follows it at the same level.
func (w *cognitiveWalker) ifChain(n *sitter.Node, level int) {
	w.score += 1 + level
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch n.FieldNameForChild(i) {
		case "consequence", "body":
			w.visit(child, level+1, false)
		case "alternative":
			w.alternative(child, level)
		default:
			w.visit(child, level, false)
		}
	}
}

func (w *cognitiveWalker) alternative(alt *sitter.Node, level int) {
	g := w.u.g
	t := alt.Type()
	switch {
	case g.ifs.has(t), g.elifs.has(t):
		w.ifChain(alt, level)
	case g.elses.has(t):
		if inner := soleIf(g, alt); inner != nil {
			w.ifChain(inner, level)
			return
		}
		w.score += 1 + level
		w.children(alt, level+1, false)
	default:
		// Bare else block
		w.score += 1 + level
		w.visit(alt, level+1, false)
	}
}

// loop nests the body; a loop else clause is scored like an if's else.
func (w *cognitiveWalker) loop(n *sitter.Node, level int) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			continue
		}
		switch n.FieldNameForChild(i) {
		case "body":
			w.visit(child, level+1, false)
		case "alternative":
			w.score += 1 + level
			w.children(child, level+1, false)
		default:
			w.visit(child, level, false)
		}
	}
}

// soleIf returns the if node of an "else if" clause, or nil for a plain else.
func soleIf(g *grammar, elseClause *sitter.Node) *sitter.Node {
	var found *sitter.Node
	for i := 0; i < int(elseClause.NamedChildCount()); i++ {
		c := elseClause.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if found != nil || !g.ifs.has(c.Type()) {
			return nil
		}
		found = c
	}
	return found
}

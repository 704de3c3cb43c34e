//go:build cgo

package parse

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// decisionPoints counts the branches of a unit without nesting weights:
// conditionals, loops, handlers, non-default case arms, ternaries, boolean runs
// and direct recursive calls. An else adds no path of its own.
func decisionPoints(u Unit) int {
	c := &cyclomaticCounter{u: u}
	c.children(u.Node, false)
	return c.count
}

type cyclomaticCounter struct {
	u     Unit
	count int
}

func (c *cyclomaticCounter) children(n *sitter.Node, inRun bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.visit(n.NamedChild(i), inRun)
	}
}

func (c *cyclomaticCounter) visit(n *sitter.Node, inRun bool) {
	g, src := c.u.g, c.u.Source
	t := n.Type()
	switch {
	case g.functions.has(t):
		return
	case g.ifs.has(t), g.elifs.has(t), g.loops.has(t), g.handlers.has(t), g.ternaries.has(t):
		c.count++
	case g.cases.has(t):
		if !g.defaultCase(n, src) {
			c.count++
		}
	case g.calls.has(t):
		if c.u.isRecursive(n) {
			c.count++
		}
	}

	switch {
	case g.isBoolean(n, src):
		if !inRun {
			c.count++
		}
		c.children(n, true)
	case g.isTransparent(n, src):
		c.children(n, inRun)
	default:
		c.children(n, false)
	}
}

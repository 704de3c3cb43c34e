//go:build cgo

package parse

import (
	"strings"

	"github.com/huangsam/codepulse/schema"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

type nodeSet map[string]struct{}

func setOf(types ...string) nodeSet {
	s := make(nodeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s nodeSet) has(t string) bool {
	_, ok := s[t]
	return ok
}

// grammar is the per-language table of node types that matter for complexity.
// Adding a language means adding one grammar value and one registry entry.
type grammar struct {
	lang   schema.Language
	sitter func() *sitter.Language

	functions   nodeSet // named functions, each becomes its own unit
	anonymous   nodeSet // lambdas and closures, part of the enclosing unit
	classes     nodeSet // scopes used to qualify method names
	ifs         nodeSet
	elifs       nodeSet
	elses       nodeSet
	loops       nodeSet
	handlers    nodeSet
	switches    nodeSet
	cases       nodeSet
	ternaries   nodeSet
	booleans    nodeSet // nodes that may hold a boolean connective
	transparent nodeSet // nodes that do not break a boolean run
	calls       nodeSet

	// defaultCase reports whether a case arm is the fallback arm.
	defaultCase func(n *sitter.Node, src []byte) bool
	// scopeName returns the qualifier a class-like node contributes.
	scopeName func(n *sitter.Node, src []byte) string
	// receiver returns the receiver type of a method declared outside its type.
	receiver func(n *sitter.Node, src []byte) string
}

var booleanConnectives = map[string]struct{}{
	"&&": {}, "||": {}, "??": {}, "and": {}, "or": {},
}

var pythonGrammar = &grammar{
	lang:        schema.Python,
	sitter:      python.GetLanguage,
	functions:   setOf("function_definition"),
	anonymous:   setOf("lambda"),
	classes:     setOf("class_definition"),
	ifs:         setOf("if_statement"),
	elifs:       setOf("elif_clause"),
	elses:       setOf("else_clause"),
	loops:       setOf("for_statement", "while_statement"),
	handlers:    setOf("except_clause", "except_group_clause"),
	switches:    setOf("match_statement"),
	cases:       setOf("case_clause"),
	ternaries:   setOf("conditional_expression"),
	booleans:    setOf("boolean_operator"),
	transparent: setOf("parenthesized_expression", "not_operator"),
	calls:       setOf("call"),
	defaultCase: func(n *sitter.Node, src []byte) bool {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "case_pattern" {
				return strings.TrimSpace(c.Content(src)) == "_"
			}
		}
		return false
	},
	scopeName: nameField,
}

var goGrammar = &grammar{
	lang:        schema.Go,
	sitter:      golang.GetLanguage,
	functions:   setOf("function_declaration", "method_declaration"),
	anonymous:   setOf("func_literal"),
	classes:     setOf(),
	ifs:         setOf("if_statement"),
	elifs:       setOf(),
	elses:       setOf(),
	loops:       setOf("for_statement"),
	handlers:    setOf(),
	switches:    setOf("expression_switch_statement", "type_switch_statement", "select_statement"),
	cases:       setOf("expression_case", "type_case", "communication_case"),
	ternaries:   setOf(),
	booleans:    setOf("binary_expression"),
	transparent: setOf("parenthesized_expression", "unary_expression"),
	calls:       setOf("call_expression"),
	defaultCase: func(*sitter.Node, []byte) bool { return false }, // default_case is its own node type
	scopeName:   nameField,
	receiver:    goReceiver,
}

var javascriptGrammar = &grammar{
	lang:        schema.JavaScript,
	sitter:      javascript.GetLanguage,
	functions:   setOf("function_declaration", "generator_function_declaration", "method_definition"),
	anonymous:   setOf("function_expression", "function", "generator_function", "arrow_function"),
	classes:     setOf("class_declaration", "class"),
	ifs:         setOf("if_statement"),
	elifs:       setOf(),
	elses:       setOf("else_clause"),
	loops:       setOf("for_statement", "for_in_statement", "while_statement", "do_statement"),
	handlers:    setOf("catch_clause"),
	switches:    setOf("switch_statement"),
	cases:       setOf("switch_case"),
	ternaries:   setOf("ternary_expression"),
	booleans:    setOf("binary_expression"),
	transparent: setOf("parenthesized_expression", "unary_expression"),
	calls:       setOf("call_expression"),
	defaultCase: func(*sitter.Node, []byte) bool { return false }, // switch_default is its own node type
	scopeName:   nameField,
}

// typescriptGrammar extends the JavaScript tables with TypeScript-only declarations.
func typescriptGrammar(lang schema.Language, tsLang func() *sitter.Language) *grammar {
	g := *javascriptGrammar
	g.lang = lang
	g.sitter = tsLang
	g.classes = setOf("class_declaration", "class", "abstract_class_declaration", "interface_declaration")
	return &g
}

var javaGrammar = &grammar{
	lang:        schema.Java,
	sitter:      java.GetLanguage,
	functions:   setOf("method_declaration", "constructor_declaration"),
	anonymous:   setOf("lambda_expression"),
	classes:     setOf("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
	ifs:         setOf("if_statement"),
	elifs:       setOf(),
	elses:       setOf(),
	loops:       setOf("for_statement", "enhanced_for_statement", "while_statement", "do_statement"),
	handlers:    setOf("catch_clause"),
	switches:    setOf("switch_expression", "switch_statement"),
	cases:       setOf("switch_block_statement_group", "switch_rule"),
	ternaries:   setOf("ternary_expression"),
	booleans:    setOf("binary_expression"),
	transparent: setOf("parenthesized_expression", "unary_expression"),
	calls:       setOf("method_invocation"),
	defaultCase: func(n *sitter.Node, src []byte) bool {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "switch_label" {
				return strings.HasPrefix(strings.TrimSpace(c.Content(src)), "default")
			}
		}
		return false
	},
	scopeName: nameField,
}

var rustGrammar = &grammar{
	lang:        schema.Rust,
	sitter:      rust.GetLanguage,
	functions:   setOf("function_item"),
	anonymous:   setOf("closure_expression"),
	classes:     setOf("impl_item", "trait_item", "mod_item"),
	ifs:         setOf("if_expression", "if_let_expression"),
	elifs:       setOf(),
	elses:       setOf("else_clause"),
	loops:       setOf("for_expression", "while_expression", "while_let_expression", "loop_expression"),
	handlers:    setOf(),
	switches:    setOf("match_expression"),
	cases:       setOf("match_arm"),
	ternaries:   setOf(),
	booleans:    setOf("binary_expression"),
	transparent: setOf("parenthesized_expression", "unary_expression"),
	calls:       setOf("call_expression"),
	defaultCase: func(n *sitter.Node, src []byte) bool {
		if p := n.ChildByFieldName("pattern"); p != nil {
			return strings.TrimSpace(p.Content(src)) == "_"
		}
		return false
	},
	scopeName: func(n *sitter.Node, src []byte) string {
		if n.Type() == "impl_item" {
			if t := n.ChildByFieldName("type"); t != nil {
				return stripGenerics(t.Content(src))
			}
		}
		return nameField(n, src)
	},
}

// nameField returns the content of the "name" field, or "" when absent.
func nameField(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}

// goReceiver returns the base type name of a Go method receiver, e.g. "Stack" for (s *Stack[T]).
func goReceiver(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	if id := firstOfType(recv, "type_identifier", 0); id != nil {
		return id.Content(src)
	}
	return ""
}

// firstOfType returns the first descendant with the given type in pre-order.
func firstOfType(n *sitter.Node, typ string, depth int) *sitter.Node {
	if n.Type() == typ {
		return n
	}
	if depth > schema.MaxSyntaxDepth {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := firstOfType(n.NamedChild(i), typ, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func stripGenerics(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// isBoolean reports whether n is a binary node joined by a boolean connective.
func (g *grammar) isBoolean(n *sitter.Node, src []byte) bool {
	if !g.booleans.has(n.Type()) {
		return false
	}
	if op := n.ChildByFieldName("operator"); op != nil {
		_, ok := booleanConnectives[op.Content(src)]
		return ok
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			continue
		}
		if _, ok := booleanConnectives[c.Type()]; ok {
			return true
		}
	}
	return false
}

// isTransparent reports whether n keeps an enclosing boolean run alive.
// Unary nodes only qualify for logical negation.
func (g *grammar) isTransparent(n *sitter.Node, src []byte) bool {
	if !g.transparent.has(n.Type()) {
		return false
	}
	if n.Type() != "unary_expression" {
		return true
	}
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Content(src) == "!"
	}
	return n.ChildCount() > 0 && n.Child(0).Type() == "!"
}

// calleeName resolves the trailing identifier of a call's target.
func (g *grammar) calleeName(call *sitter.Node, src []byte) string {
	target := call.ChildByFieldName("function")
	if target == nil {
		target = call.ChildByFieldName("name")
	}
	if target == nil {
		return ""
	}
	for _, field := range []string{"attribute", "field", "property", "name"} {
		if sub := target.ChildByFieldName(field); sub != nil {
			return sub.Content(src)
		}
	}
	return target.Content(src)
}

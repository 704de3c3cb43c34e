package parse

import (
	"bytes"
	"context"
	"fmt"
	"unicode"

	"github.com/huangsam/codepulse/schema"
)

// ThriftParser measures Thrift IDL documents by counting declarations,
// fields, operations and collection types.
type ThriftParser struct {
	weights map[schema.StructuralConstruct]float64
}

var _ Parser = &ThriftParser{} // Compile-time check

// NewThriftParser creates a parser for Thrift IDL.
func NewThriftParser(weights map[schema.StructuralConstruct]float64) *ThriftParser {
	return &ThriftParser{weights: weights}
}

// Language implements the Parser interface.
func (p *ThriftParser) Language() schema.Language {
	return schema.Thrift
}

// Analyze implements the Parser interface.
func (p *ThriftParser) Analyze(ctx context.Context, source []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens, err := scanThrift(source)
	if err != nil {
		return nil, &schema.ParseError{Reason: err.Error()}
	}
	c := newStructureCounter()
	if err := countThrift(tokens, c); err != nil {
		return nil, &schema.ParseError{Reason: err.Error()}
	}
	return c.result(p.weights, bytes.Count(source, []byte("\n"))+1), nil
}

type thriftToken struct {
	text string
	line int
}

// declarations maps block keywords to the construct they open.
var declarations = map[string]schema.StructuralConstruct{
	"service":   schema.ConstructInterface,
	"struct":    schema.ConstructRecord,
	"union":     schema.ConstructUnion,
	"exception": schema.ConstructError,
	"enum":      schema.ConstructEnum,
	"senum":     schema.ConstructEnum,
}

var collections = map[string]bool{"list": true, "set": true, "map": true}

// blockFrame is an open brace or angle bracket.
type blockFrame struct {
	open rune
	kind schema.StructuralConstruct // Declaration that owns a brace; empty otherwise
	line int
}

func countThrift(tokens []thriftToken, c *structureCounter) error {
	var stack []blockFrame
	var pending schema.StructuralConstruct
	parens := 0

	inside := func(kinds ...schema.StructuralConstruct) bool {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].open != '{' {
				continue
			}
			for _, k := range kinds {
				if stack[i].kind == k {
					return true
				}
			}
			return false
		}
		return false
	}
	next := func(i int) string {
		if i+1 < len(tokens) {
			return tokens[i+1].text
		}
		return ""
	}

	for i, tok := range tokens {
		switch tok.text {
		case "{", "<":
			open := rune(tok.text[0])
			frame := blockFrame{open: open, line: tok.line}
			if open == '{' {
				frame.kind, pending = pending, ""
			}
			stack = append(stack, frame)
			c.nestingSum += max(0, len(stack)-1)
			c.maxDepth = max(c.maxDepth, len(stack))
			if len(stack) > schema.MaxSyntaxDepth {
				return fmt.Errorf("nesting exceeds %d at line %d", schema.MaxSyntaxDepth, tok.line)
			}
		case "}", ">":
			want := '{'
			if tok.text == ">" {
				want = '<'
			}
			if len(stack) == 0 || stack[len(stack)-1].open != want {
				return fmt.Errorf("unbalanced %q at line %d", tok.text, tok.line)
			}
			stack = stack[:len(stack)-1]
		case "(":
			parens++
		case ")":
			if parens == 0 {
				return fmt.Errorf("unbalanced %q at line %d", tok.text, tok.line)
			}
			parens--
		case "typedef":
			c.counts[schema.ConstructAlias]++
		case "extends":
			c.counts[schema.ConstructInheritance]++
		default:
			if kind, ok := declarations[tok.text]; ok && len(stack) == 0 {
				c.counts[kind]++
				pending = kind
				continue
			}
			if collections[tok.text] && next(i) == "<" {
				c.counts[schema.ConstructCollection]++
				continue
			}
			if parens == 0 && next(i) == ":" && isDigits(tok.text) &&
				inside(schema.ConstructRecord, schema.ConstructUnion, schema.ConstructError) {
				c.counts[schema.ConstructField]++
				continue
			}
			if parens == 0 && next(i) == "(" && tok.text != "throws" && isIdent(tok.text) &&
				inside(schema.ConstructInterface) {
				c.counts[schema.ConstructOperation]++
			}
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Errorf("unclosed %q opened at line %d", string(top.open), top.line)
	}
	if parens != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}

// scanThrift splits the document into identifiers, numbers and punctuation,
// dropping comments and string literals.
func scanThrift(src []byte) ([]thriftToken, error) {
	var tokens []thriftToken
	line := 1
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == '\n':
			line++
			i++
		case ch == ' ' || ch == '\t' || ch == '\r':
			i++
		case ch == '#' || (ch == '/' && i+1 < len(src) && src[i+1] == '/'):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case ch == '/' && i+1 < len(src) && src[i+1] == '*':
			start := line
			end := bytes.Index(src[i+2:], []byte("*/"))
			if end < 0 {
				return nil, fmt.Errorf("unterminated comment at line %d", start)
			}
			line += bytes.Count(src[i:i+2+end], []byte("\n"))
			i += end + 4
		case ch == '"' || ch == '\'':
			start := line
			j := i + 1
			for j < len(src) && src[j] != ch {
				if src[j] == '\\' {
					j++
				} else if src[j] == '\n' {
					line++
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string at line %d", start)
			}
			i = j + 1
		case isWordByte(ch):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			tokens = append(tokens, thriftToken{text: string(src[i:j]), line: line})
			i = j
		default:
			tokens = append(tokens, thriftToken{text: string(ch), line: line})
			i++
		}
	}
	return tokens, nil
}

func isWordByte(b byte) bool {
	return b == '_' || b == '.' || b >= 0x80 || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	return s != "" && !unicode.IsDigit(rune(s[0]))
}

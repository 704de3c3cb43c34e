package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/huangsam/codepulse/schema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// structureCounter accumulates construct counts and container nesting.
type structureCounter struct {
	counts     map[schema.StructuralConstruct]int
	nestingSum int
	maxDepth   int
}

func newStructureCounter() *structureCounter {
	return &structureCounter{counts: map[schema.StructuralConstruct]int{}}
}

// container records one container opened at the given depth (top level is 1).
func (c *structureCounter) container(kind schema.StructuralConstruct, depth int) {
	c.counts[kind]++
	c.nestingSum += max(0, depth-1)
	c.maxDepth = max(c.maxDepth, depth)
}

// result turns the counts into a single-unit Result using the weight table.
func (c *structureCounter) result(weights map[schema.StructuralConstruct]float64, lines int) *Result {
	score := 1.0
	for construct, n := range c.counts {
		score += weights[construct] * float64(n)
	}
	score += weights[schema.ConstructNesting] * float64(c.nestingSum)
	cyc := int(math.Round(score))

	res := &Result{
		Functions: []FunctionResult{{
			Name:       schema.ModulePseudoFunction,
			StartLine:  1,
			EndLine:    max(1, lines),
			Cyclomatic: cyc,
			Cognitive:  c.nestingSum,
		}},
		Detail: &schema.StructureDetail{Constructs: c.counts, MaxDepth: c.maxDepth},
	}
	res.totals()
	return res
}

// StructuredParser measures configuration documents: JSON, YAML and TOML.
// Objects, arrays and keys are weighted; every container level beyond the
// first adds a nesting penalty and one cognitive point.
type StructuredParser struct {
	lang    schema.Language
	weights map[schema.StructuralConstruct]float64
}

var _ Parser = &StructuredParser{} // Compile-time check

// NewStructuredParser creates a parser for JSON, YAML or TOML.
func NewStructuredParser(lang schema.Language, weights map[schema.StructuralConstruct]float64) *StructuredParser {
	return &StructuredParser{lang: lang, weights: weights}
}

// Language implements the Parser interface.
func (p *StructuredParser) Language() schema.Language {
	return p.lang
}

// Analyze implements the Parser interface.
func (p *StructuredParser) Analyze(ctx context.Context, source []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := newStructureCounter()
	var err error
	switch p.lang {
	case schema.JSON:
		err = p.countJSON(source, c)
	case schema.YAML:
		err = p.countYAML(source, c)
	case schema.TOML:
		err = p.countTOML(source, c)
	default:
		return nil, fmt.Errorf("%w: %s", schema.ErrUnsupportedLanguage, p.lang)
	}
	if err != nil {
		return nil, &schema.ParseError{Reason: err.Error()}
	}
	return c.result(p.weights, bytes.Count(source, []byte("\n"))+1), nil
}

// countJSON validates strictly as JSON, then walks the YAML node tree of the same bytes.
func (p *StructuredParser) countJSON(source []byte, c *structureCounter) error {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil
	}
	if !json.Valid(source) {
		return errors.New("invalid JSON document")
	}
	return p.countYAML(source, c)
}

func (p *StructuredParser) countYAML(source []byte, c *structureCounter) error {
	dec := yaml.NewDecoder(bytes.NewReader(source))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := walkYAML(&doc, 0, c, 0); err != nil {
			return err
		}
	}
}

func walkYAML(n *yaml.Node, depth int, c *structureCounter, steps int) error {
	if steps > schema.MaxSyntaxDepth {
		return fmt.Errorf("document depth exceeds %d", schema.MaxSyntaxDepth)
	}
	switch n.Kind {
	case yaml.DocumentNode:
		for _, child := range n.Content {
			if err := walkYAML(child, depth, c, steps+1); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		c.container(schema.ConstructObject, depth+1)
		c.counts[schema.ConstructKey] += len(n.Content) / 2
		for i := 1; i < len(n.Content); i += 2 {
			if err := walkYAML(n.Content[i], depth+1, c, steps+1); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		c.container(schema.ConstructArray, depth+1)
		for _, child := range n.Content {
			if err := walkYAML(child, depth+1, c, steps+1); err != nil {
				return err
			}
		}
	}
	// Scalars add nothing and aliases point at nodes already counted.
	return nil
}

func (p *StructuredParser) countTOML(source []byte, c *structureCounter) error {
	var doc map[string]any
	if err := toml.Unmarshal(source, &doc); err != nil {
		return err
	}
	if len(doc) == 0 {
		return nil
	}
	walkTOML(doc, 0, c)
	return nil
}

func walkTOML(v any, depth int, c *structureCounter) {
	switch val := v.(type) {
	case map[string]any:
		c.container(schema.ConstructObject, depth+1)
		c.counts[schema.ConstructKey] += len(val)
		for _, child := range val {
			walkTOML(child, depth+1, c)
		}
	case []any:
		c.container(schema.ConstructArray, depth+1)
		for _, child := range val {
			walkTOML(child, depth+1, c)
		}
	case []map[string]any:
		c.container(schema.ConstructArray, depth+1)
		for _, child := range val {
			walkTOML(child, depth+1, c)
		}
	}
}

// Package parse turns source files into per-function cyclomatic and cognitive complexity.
package parse

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/huangsam/codepulse/schema"
)

// FunctionResult is the complexity of one function, method or operation.
type FunctionResult struct {
	Name       string
	StartLine  int
	EndLine    int
	Cyclomatic int
	Cognitive  int
}

// Result is the complexity of one file.
// Cyclomatic and Cognitive are file totals; Detail is only set by structural parsers.
type Result struct {
	Functions  []FunctionResult
	Cyclomatic int
	Cognitive  int
	Detail     *schema.StructureDetail
}

// Parser computes complexity for the source of one language.
// Implementations are safe for concurrent use.
type Parser interface {
	Language() schema.Language
	Analyze(ctx context.Context, source []byte) (*Result, error)
}

// Registry maps lowercase file extensions (with the dot) to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry returns a registry holding the default extension table.
// Structural parsers use the given construct weights; nil selects the defaults.
func NewRegistry(weights map[schema.StructuralConstruct]float64) *Registry {
	if weights == nil {
		weights = schema.DefaultStructuralWeights
	}
	r := &Registry{parsers: map[string]Parser{}}
	registerProcedural(r)

	jsonParser := NewStructuredParser(schema.JSON, weights)
	yamlParser := NewStructuredParser(schema.YAML, weights)
	tomlParser := NewStructuredParser(schema.TOML, weights)
	r.Register(jsonParser, ".json")
	r.Register(yamlParser, ".yaml", ".yml")
	r.Register(tomlParser, ".toml")
	r.Register(NewThriftParser(weights), ".thrift")
	return r
}

// Register binds a parser to one or more extensions, replacing earlier bindings.
func (r *Registry) Register(p Parser, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// Resolve returns the parser for an extension such as ".py". Lookup is case-insensitive.
func (r *Registry) Resolve(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[strings.ToLower(ext)]
	return p, ok
}

// ResolvePath returns the parser for a file path based on its extension.
func (r *Registry) ResolvePath(path string) (Parser, bool) {
	return r.Resolve(filepath.Ext(path))
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// totals fills the file totals from the function list. A file without
// functions has the baseline cyclomatic complexity of 1.
func (res *Result) totals() {
	res.Cyclomatic, res.Cognitive = 0, 0
	for _, fn := range res.Functions {
		res.Cyclomatic += fn.Cyclomatic
		res.Cognitive += fn.Cognitive
	}
	if len(res.Functions) == 0 {
		res.Cyclomatic = 1
	}
}

package parse

import (
	"context"
	"testing"

	"github.com/huangsam/codepulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleThrift = `
namespace go demo

/* Identifiers */
typedef i64 UserId

enum Status { ACTIVE = 1, BANNED = 2 }

struct User {
  1: required UserId id,
  2: optional list<string> tags, # labels
  3: map<string, list<i32>> scores // per game
  4: string bio = "uses { and ( freely"
}

exception NotFound { 1: string message }

union Lookup { 1: UserId id, 2: string name }

service Base { void ping() }

service Users extends Base {
  User get(1: UserId id) throws (1: NotFound nf),
  oneway void touch(1: UserId id)
}
`

// TestThriftParser checks declaration, field and nesting counts.
func TestThriftParser(t *testing.T) {
	p := NewThriftParser(schema.DefaultStructuralWeights)
	assert.Equal(t, schema.Thrift, p.Language())

	res, err := p.Analyze(context.Background(), []byte(sampleThrift))
	require.NoError(t, err)
	require.NotNil(t, res.Detail)

	assert.Equal(t, map[schema.StructuralConstruct]int{
		schema.ConstructAlias:       1,
		schema.ConstructEnum:        1,
		schema.ConstructRecord:      1,
		schema.ConstructError:       1,
		schema.ConstructUnion:       1,
		schema.ConstructInterface:   2,
		schema.ConstructInheritance: 1,
		schema.ConstructOperation:   3,
		schema.ConstructField:       7,
		schema.ConstructCollection:  3,
	}, res.Detail.Constructs)
	assert.Equal(t, 3, res.Detail.MaxDepth)
	assert.Equal(t, 4, res.Cognitive)
	// 1 + 0.5 + 0.5 + 1 + 1 + 1.5 + 4 + 1 + 3 + 0.7 + 1.5 + 0.5*4
	assert.Equal(t, 18, res.Cyclomatic)
}

// TestThriftParserErrors checks that unbalanced documents are rejected.
func TestThriftParserErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"unclosed brace", "struct A { 1: i32 x"},
		{"mismatched angle", "struct A { 1: list<i32 x }"},
		{"stray close", "}"},
		{"unclosed paren", "service S { void f(1: i32 x }"},
		{"unterminated comment", "/* struct A {}"},
		{"unterminated string", `const string s = "abc`},
	}
	p := NewThriftParser(schema.DefaultStructuralWeights)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Analyze(context.Background(), []byte(tt.source))
			assert.ErrorIs(t, err, schema.ErrParse)
		})
	}
}

// TestThriftParserEmpty checks the baseline for a document without declarations.
func TestThriftParserEmpty(t *testing.T) {
	res, err := NewThriftParser(schema.DefaultStructuralWeights).Analyze(context.Background(), []byte("// nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cyclomatic)
	assert.Equal(t, 0, res.Cognitive)
}

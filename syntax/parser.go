package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Dialect identifies the grammar used to parse a code snapshot
type Dialect int

const (
	JavaScript Dialect = iota
	TypeScript
	TSX
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case TypeScript:
		return "typescript"
	case TSX:
		return "tsx"
	default:
		return "javascript"
	}
}

// DialectForPath determines the dialect from a file extension; the javascript
// grammar also covers JSX, so .jsx files map to JavaScript
func DialectForPath(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return TypeScript
	case ".tsx":
		return TSX
	default:
		return JavaScript
	}
}

var (
	tsMarker  = regexp.MustCompile(`(?m)^\s*(?:interface\s+\w+\s*\{|type\s+\w+\s*=|enum\s+\w+)|:\s*(?:string|number|boolean|unknown|void)\b`)
	jsxMarker = regexp.MustCompile(`</[A-Za-z][\w.]*\s*>|<[A-Za-z][\w.]*[^<>]*/>`)
)

// DetectDialect guesses the dialect from code content when no file path is
// available; TypeScript constructs select TypeScript, with JSX tags on top of
// them selecting TSX. The markers deliberately avoid generic instantiations
// like Array<string> by requiring a closing or self-closing tag.
func DetectDialect(code string) Dialect {
	hasTS := tsMarker.MatchString(code)
	switch {
	case hasTS && jsxMarker.MatchString(code):
		return TSX
	case hasTS:
		return TypeScript
	default:
		return JavaScript
	}
}

// Parser parses JavaScript/TypeScript/TSX source code into syntax trees
type Parser struct {
	dialect Dialect
}

// NewParser creates a new Parser for the given dialect
func NewParser(dialect Dialect) *Parser {
	return &Parser{dialect: dialect}
}

// Dialect returns the parser's dialect
func (p *Parser) Dialect() Dialect {
	return p.dialect
}

// Tree holds a parsed syntax tree together with the source it was parsed from
type Tree struct {
	tree   *sitter.Tree
	source []byte
}

// Root returns the root node of the tree
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the source the tree was parsed from
func (t *Tree) Source() []byte {
	return t.source
}

// HasErrors reports whether the tree contains error or missing nodes;
// tree-sitter is error tolerant, so a non-nil tree can still be invalid
func (t *Tree) HasErrors() bool {
	return t.tree.RootNode().HasError()
}

// Parse parses source code into a syntax tree
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return &Tree{tree: tree, source: src}, nil
}

// Validate reports whether source code parses without error nodes
func (p *Parser) Validate(ctx context.Context, src []byte) bool {
	tree, err := p.Parse(ctx, src)
	if err != nil {
		return false
	}
	return !tree.HasErrors()
}

func (p *Parser) language() *sitter.Language {
	switch p.dialect {
	case TypeScript:
		return typescript.GetLanguage()
	case TSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

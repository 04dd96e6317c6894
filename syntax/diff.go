package syntax

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// ChangeKind classifies a structural difference between two snapshots
type ChangeKind int

const (
	Addition ChangeKind = iota
	Removal
	Modification
)

// String returns the change kind name
func (k ChangeKind) String() string {
	switch k {
	case Removal:
		return "removal"
	case Modification:
		return "modification"
	default:
		return "addition"
	}
}

// Location identifies where a node occurs in its source snapshot
type Location struct {
	Row    uint32
	Column uint32
	Byte   uint32
}

// Diff represents one structural change between a before and after snapshot.
// Diffs are transient; they are consumed by extraction and never persisted.
type Diff struct {
	Change   ChangeKind
	NodeKind string
	Before   string
	After    string
	Location Location
}

// significantKinds lists the node kinds worth diffing; everything else is
// carried implicitly by its enclosing statement
var significantKinds = map[string]bool{
	"import_statement":         true,
	"export_statement":         true,
	"function_declaration":     true,
	"class_declaration":        true,
	"lexical_declaration":      true,
	"variable_declaration":     true,
	"expression_statement":     true,
	"return_statement":         true,
	"jsx_element":              true,
	"jsx_self_closing_element": true,
	"interface_declaration":    true,
	"type_alias_declaration":   true,
	"method_definition":        true,
}

type flatNode struct {
	kind     string
	content  string
	location Location
}

// flatten collects the tree's significant nodes into a key-indexed map.
// Two distinct nodes can collide on a truncated rendering key; the later
// one wins, which can conflate a moved node with a modified one. Confidence
// scoring downstream discounts such ambiguous diffs.
func flatten(tree *Tree) map[string]flatNode {
	nodes := make(map[string]flatNode)
	src := tree.Source()
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if significantKinds[child.Type()] {
				point := child.StartPoint()
				nodes[nodeKey(child, src)] = flatNode{
					kind:    child.Type(),
					content: child.Content(src),
					location: Location{
						Row:    point.Row,
						Column: point.Column,
						Byte:   child.StartByte(),
					},
				}
			}
			walk(child)
		}
	}
	walk(tree.Root())
	return nodes
}

// DiffTrees compares two syntax trees by key set: keys only present in the
// after tree are additions, keys only in the before tree are removals, and
// shared keys whose normalized rendering differs are modifications
func DiffTrees(before, after *Tree) []Diff {
	beforeNodes := flatten(before)
	afterNodes := flatten(after)

	var diffs []Diff
	keys := make([]string, 0, len(beforeNodes)+len(afterNodes))
	seen := make(map[string]bool)
	for key := range beforeNodes {
		keys = append(keys, key)
		seen[key] = true
	}
	for key := range afterNodes {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		prev, inBefore := beforeNodes[key]
		next, inAfter := afterNodes[key]
		switch {
		case inBefore && !inAfter:
			diffs = append(diffs, Diff{
				Change:   Removal,
				NodeKind: prev.kind,
				Before:   prev.content,
				Location: prev.location,
			})
		case !inBefore && inAfter:
			diffs = append(diffs, Diff{
				Change:   Addition,
				NodeKind: next.kind,
				After:    next.content,
				Location: next.location,
			})
		case normalizeFragment(prev.content) != normalizeFragment(next.content):
			diffs = append(diffs, Diff{
				Change:   Modification,
				NodeKind: next.kind,
				Before:   prev.content,
				After:    next.content,
				Location: next.location,
			})
		}
	}
	return diffs
}

// DiffSource parses both snapshots and diffs the resulting trees. A parse
// failure on either snapshot degrades to no diffs so that learning never
// blocks the primary transformation.
func DiffSource(ctx context.Context, before, after []byte, dialect Dialect) []Diff {
	parser := NewParser(dialect)
	beforeTree, err := parser.Parse(ctx, before)
	if err != nil || beforeTree.HasErrors() {
		return nil
	}
	afterTree, err := parser.Parse(ctx, after)
	if err != nil || afterTree.HasErrors() {
		return nil
	}
	return DiffTrees(beforeTree, afterTree)
}

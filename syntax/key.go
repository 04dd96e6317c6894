package syntax

import (
	"fmt"
	"strings"

	"github.com/minio/highwayhash"
	sitter "github.com/smacker/go-tree-sitter"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// keyPrefixLen bounds the canonical rendering used in a stable key; nodes
// whose content differs only beyond this prefix are reported as modifications
const keyPrefixLen = 48

// Hash returns a stable 64-bit hash of the given data
func Hash(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}

// nodeKey derives a stable key for a node from its kind plus a truncated
// canonical rendering: the import source path for imports, the tag name for
// JSX elements, otherwise a hashed prefix of the node's source
func nodeKey(node *sitter.Node, src []byte) string {
	kind := node.Type()
	switch kind {
	case "import_statement":
		if source := importSource(node, src); source != "" {
			return "import:" + source
		}
	case "jsx_element", "jsx_self_closing_element":
		if tag := jsxTagName(node, src); tag != "" {
			return "jsx:" + tag
		}
	}
	content := normalizeFragment(node.Content(src))
	if len(content) > keyPrefixLen {
		content = content[:keyPrefixLen]
	}
	sum, err := Hash([]byte(content))
	if err != nil {
		return kind + ":" + content
	}
	return fmt.Sprintf("%s:%016x", kind, sum)
}

// importSource extracts the module path of an import statement
func importSource(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string" {
			return strings.Trim(child.Content(src), "'\"`")
		}
	}
	return ""
}

// jsxTagName extracts the element name of a JSX element
func jsxTagName(node *sitter.Node, src []byte) string {
	target := node
	if node.Type() == "jsx_element" {
		if opening := node.NamedChild(0); opening != nil && opening.Type() == "jsx_opening_element" {
			target = opening
		}
	}
	if name := target.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	for i := 0; i < int(target.NamedChildCount()); i++ {
		child := target.NamedChild(i)
		if child.Type() == "identifier" || child.Type() == "member_expression" {
			return child.Content(src)
		}
	}
	return ""
}

// normalizeFragment collapses runs of whitespace so that formatting-only
// differences do not change a node's key
func normalizeFragment(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

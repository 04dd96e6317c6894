package pattern

import (
	"regexp"
	"strings"
)

// importNames maps module paths to their conventional default import name
var importNames = map[string]string{
	"next/image":  "Image",
	"next/link":   "Link",
	"next/head":   "Head",
	"next/router": "Router",
	"react":       "React",
}

// ImportLine renders the import statement for a module path
func ImportLine(path string) string {
	if name, ok := importNames[path]; ok {
		return "import " + name + " from '" + path + "';"
	}
	return "import '" + path + "';"
}

// EnsureImport inserts the import for the given module path unless an import
// of that path is already present. New imports land after the last existing
// top import, otherwise after a leading directive, otherwise at the top.
func EnsureImport(code, path string) string {
	present := regexp.MustCompile(`(?m)^import\b[^\n]*['"]` + regexp.QuoteMeta(path) + `['"]`)
	if present.MatchString(code) {
		return code
	}
	line := ImportLine(path)

	if at := lastImportEnd(code); at >= 0 {
		return code[:at] + line + "\n" + code[at:]
	}
	if hasStrictDirective(code) {
		if at := strings.IndexByte(code, '\n'); at >= 0 {
			return code[:at+1] + line + "\n" + code[at+1:]
		}
		return code + "\n" + line + "\n"
	}
	return line + "\n" + code
}

// lastImportEnd returns the offset just past the last top-level import line
func lastImportEnd(code string) int {
	end := -1
	offset := 0
	for _, raw := range strings.SplitAfter(code, "\n") {
		if strings.HasPrefix(strings.TrimSpace(raw), "import ") {
			end = offset + len(raw)
		}
		offset += len(raw)
	}
	return end
}

package pattern

import (
	"strings"
	"sync"
)

// TemplateFunc computes a replacement from a regexp match; groups[0] is the
// full match, groups[1..] the submatches. A template returning groups[0]
// unchanged makes the owning rule a no-op for that match, which is how
// idempotent insertions are expressed.
type TemplateFunc func(groups []string) string

var (
	templateMu sync.RWMutex
	templates  = map[string]TemplateFunc{}
)

// RegisterTemplate registers a named template function
func RegisterTemplate(name string, fn TemplateFunc) {
	templateMu.Lock()
	defer templateMu.Unlock()
	templates[name] = fn
}

// LookupTemplate resolves a template by name
func LookupTemplate(name string) (TemplateFunc, bool) {
	templateMu.RLock()
	defer templateMu.RUnlock()
	fn, ok := templates[name]
	return fn, ok
}

// TemplateNames lists the registered template names
func TemplateNames() []string {
	templateMu.RLock()
	defer templateMu.RUnlock()
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterTemplate("jsx-add-key", addIterationKey)
	RegisterTemplate("jsx-img-alt", addImgAlt)
	RegisterTemplate("secret-to-env", secretToEnv)
}

// addIterationKey inserts key={index|item} into a JSX element returned from a
// .map callback; groups: 1 item param, 2 index param, 3 open paren, 4 tag, 5 attrs
func addIterationKey(groups []string) string {
	if strings.Contains(groups[5], "key=") {
		return groups[0]
	}
	keyExpr := groups[2]
	if keyExpr == "" {
		keyExpr = groups[1]
	}
	tag := "<" + groups[4]
	return strings.Replace(groups[0], tag, tag+" key={"+keyExpr+"}", 1)
}

// addImgAlt adds an empty alt attribute to img tags lacking one;
// groups: 1 attributes, 2 self-closing slash
func addImgAlt(groups []string) string {
	if strings.Contains(groups[1], "alt=") {
		return groups[0]
	}
	return "<img" + groups[1] + ` alt=""` + groups[2] + ">"
}

// secretToEnv rewrites a hardcoded credential value into an environment
// lookup; groups: 1 key name, 2 separator
func secretToEnv(groups []string) string {
	envName := strings.ToUpper(strings.NewReplacer("-", "_", " ", "").Replace(groups[1]))
	return groups[1] + groups[2] + "process.env." + envName
}

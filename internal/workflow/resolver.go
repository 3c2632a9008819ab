// File: internal/workflow/resolver.go
// Variable resolution against run state. A value that is exactly one
// ${path} reference resolves to the referenced value with its type intact;
// references embedded in larger strings are stringified in place. Anything
// unresolvable stays verbatim so authors can see exactly which reference
// failed in the output.
package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// State is the mutable variable store of one run.
type State map[string]any

var (
	refPattern      = regexp.MustCompile(`\$\{([^}]+)\}`)
	wholeRefPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)
)

// Resolve substitutes ${path} references in value, recursing through maps
// and slices. The input is never mutated.
func Resolve(value any, state State) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, state)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Resolve(item, state)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, state)
		}
		return out
	default:
		return value
	}
}

// ResolveString resolves a string value and stringifies the result. Handy
// for selectors and URLs, where only text makes sense.
func ResolveString(value string, state State) string {
	resolved := resolveString(value, state)
	if s, ok := resolved.(string); ok {
		return s
	}
	return stringify(resolved)
}

func resolveString(value string, state State) any {
	if m := wholeRefPattern.FindStringSubmatch(value); m != nil {
		if resolved, ok := lookup(state, m[1]); ok {
			return resolved
		}
		return value
	}

	return refPattern.ReplaceAllStringFunc(value, func(ref string) string {
		path := ref[2 : len(ref)-1]
		if resolved, ok := lookup(state, path); ok {
			return stringify(resolved)
		}
		return ref
	})
}

// lookup walks a dotted path through nested maps. A nil leaf counts as
// unresolved, keeping the original reference visible.
func lookup(state State, path string) (any, bool) {
	parts := strings.Split(path, ".")

	current, ok := state[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		m, isMap := current.(map[string]any)
		if !isMap {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Truthy decides whether a resolved value enables a conditional step. Empty
// strings, zero numbers, empty collections and nil are all falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

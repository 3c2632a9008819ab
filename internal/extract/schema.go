// File: internal/extract/schema.go
// Schema loading and normalization. Raw schema documents arrive in one of
// three shapes and are resolved into a tagged Schema exactly once, at load
// time; the extractor itself never re-detects formats per call.
package extract

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Format classifies a raw schema document.
type Format int

const (
	// FormatGeneric means no recognized keys; extraction falls back to
	// heuristic container scans.
	FormatGeneric Format = iota
	// FormatLegacy is the flat keyword shape (container, link_selector,
	// title, author, date, content).
	FormatLegacy
	// FormatSelectors is the explicit list shape under a "selectors" key.
	FormatSelectors
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatSelectors:
		return "selectors"
	default:
		return "generic"
	}
}

// legacyKeys are the markers of the flat legacy shape. They may appear at the
// document root or nested one level under "content".
var legacyKeys = []string{"container", "link_selector", "attribute", "content", "title", "author", "date"}

// FieldRule describes how a single named value is pulled from an element.
type FieldRule struct {
	Selector  string
	Type      string
	Attribute string
}

// ChildRule selects nested elements whose markup feeds the content body.
type ChildRule struct {
	Type     string
	Selector string
}

// SelectorDef is one entry of a selectors-format schema.
type SelectorDef struct {
	Name     string
	CSS      string
	XPath    string
	Fields   map[string]FieldRule
	Children map[string]ChildRule
}

// URLRule is the normalized link-harvesting half of a legacy schema.
type URLRule struct {
	Container    string
	LinkSelector string
	Attribute    string
	Include      []*regexp.Regexp
	Exclude      []*regexp.Regexp
}

// ContentRule is the normalized record-extraction half of a legacy schema.
type ContentRule struct {
	Title         string
	Author        string
	Date          string
	DateAttribute string
	Container     string
	Remove        []string
	CustomFields  map[string]FieldRule
}

// Schema is a fully normalized extraction schema.
type Schema struct {
	Format    Format
	URLs      URLRule
	Content   ContentRule
	Selectors []SelectorDef
}

// DetectFormat classifies a raw schema document. A "selectors" key always
// wins, regardless of any legacy keywords present beside it; legacy keywords
// are checked both at the root and nested under "content".
func DetectFormat(raw map[string]any) Format {
	if raw == nil {
		return FormatGeneric
	}
	if _, ok := raw["selectors"]; ok {
		return FormatSelectors
	}

	check := raw
	if nested, ok := raw["content"].(map[string]any); ok {
		check = nested
	}
	for _, key := range legacyKeys {
		if _, ok := check[key]; ok {
			return FormatLegacy
		}
	}
	for _, key := range legacyKeys {
		if _, ok := raw[key]; ok {
			return FormatLegacy
		}
	}
	return FormatGeneric
}

// LoadSchema reads a YAML (or JSON, which is a YAML subset) schema file and
// normalizes it.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schema file %q: %w", path, err)
	}
	return Normalize(raw)
}

// Normalize resolves a raw schema document into its tagged form. Unknown
// shapes degrade to FormatGeneric; malformed regular expressions are a hard
// error because silently dropping a filter would widen crawl scope.
func Normalize(raw map[string]any) (*Schema, error) {
	schema := &Schema{Format: DetectFormat(raw)}

	switch schema.Format {
	case FormatSelectors:
		if err := normalizeSelectors(raw, schema); err != nil {
			return nil, err
		}
	case FormatLegacy:
		if err := normalizeLegacy(raw, schema); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

func normalizeSelectors(raw map[string]any, schema *Schema) error {
	defs, _ := raw["selectors"].([]any)
	for _, entry := range defs {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		def := SelectorDef{
			Name:     str(m["name"]),
			CSS:      str(m["css"]),
			XPath:    str(m["xpath"]),
			Fields:   map[string]FieldRule{},
			Children: map[string]ChildRule{},
		}
		// The selector may also be nested one level under a "selector"
		// mapping; that layout takes precedence when present.
		if nested, ok := m["selector"].(map[string]any); ok {
			if css := str(nested["css"]); css != "" {
				def.CSS = css
			}
			if xpath := str(nested["xpath"]); xpath != "" {
				def.XPath = xpath
			}
		}
		if fields, ok := m["fields"].(map[string]any); ok {
			for name, fv := range fields {
				def.Fields[name] = toFieldRule(fv)
			}
		}
		if children, ok := m["children"].(map[string]any); ok {
			for name, cv := range children {
				cm, ok := cv.(map[string]any)
				if !ok {
					continue
				}
				def.Children[name] = ChildRule{
					Type:     str(cm["type"]),
					Selector: firstStr(cm, "selector", "css"),
				}
			}
		}
		schema.Selectors = append(schema.Selectors, def)
	}
	return nil
}

func normalizeLegacy(raw map[string]any, schema *Schema) error {
	urlView := subView(raw, "urls")
	contentView := subView(raw, "content")

	schema.URLs = URLRule{
		Container:    firstStr(urlView, "container", "container_selector"),
		LinkSelector: firstStr(urlView, "link_selector", "url_selector"),
		Attribute:    firstStr(urlView, "attribute", "url_attribute"),
	}
	if schema.URLs.LinkSelector == "" {
		schema.URLs.LinkSelector = "a"
	}
	if schema.URLs.Attribute == "" {
		schema.URLs.Attribute = "href"
	}

	include, exclude := patternLists(urlView)
	var err error
	if schema.URLs.Include, err = compilePatterns(include); err != nil {
		return fmt.Errorf("schema include patterns: %w", err)
	}
	if schema.URLs.Exclude, err = compilePatterns(exclude); err != nil {
		return fmt.Errorf("schema exclude patterns: %w", err)
	}

	schema.Content = ContentRule{
		Title:         firstStr(contentView, "title", "title_selector"),
		Author:        firstStr(contentView, "author", "author_selector"),
		Date:          firstStr(contentView, "date", "date_selector"),
		DateAttribute: str(contentView["date_attribute"]),
		CustomFields:  map[string]FieldRule{},
	}

	// The "content" key is overloaded: a string is the body container
	// selector, a mapping is the nested content sub-schema handled above.
	if container := str(contentView["content"]); container != "" {
		schema.Content.Container = container
	} else {
		schema.Content.Container = str(contentView["content_container_selector"])
	}

	for _, rv := range toAnySlice(contentView["remove"]) {
		if s := str(rv); s != "" {
			schema.Content.Remove = append(schema.Content.Remove, s)
		}
	}
	if custom, ok := contentView["custom_fields"].(map[string]any); ok {
		for name, fv := range custom {
			schema.Content.CustomFields[name] = toFieldRule(fv)
		}
	}
	return nil
}

// subView returns raw[key] when it is a nested mapping, otherwise the root
// document itself; legacy schemas exist in both layouts.
func subView(raw map[string]any, key string) map[string]any {
	if nested, ok := raw[key].(map[string]any); ok {
		return nested
	}
	return raw
}

// patternLists accepts filters either under a "patterns" mapping or as
// top-level include/exclude lists.
func patternLists(view map[string]any) (include, exclude []any) {
	if patterns, ok := view["patterns"].(map[string]any); ok {
		return toAnySlice(patterns["include"]), toAnySlice(patterns["exclude"])
	}
	return toAnySlice(view["include"]), toAnySlice(view["exclude"])
}

func compilePatterns(values []any) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, v := range values {
		s := str(v)
		if s == "" {
			continue
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// toFieldRule accepts either a bare selector string or a
// {selector, type, attribute} mapping.
func toFieldRule(v any) FieldRule {
	switch fv := v.(type) {
	case string:
		return FieldRule{Selector: fv}
	case map[string]any:
		return FieldRule{
			Selector:  firstStr(fv, "selector", "sample", "css"),
			Type:      str(fv["type"]),
			Attribute: str(fv["attribute"]),
		}
	default:
		return FieldRule{}
	}
}

func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstStr(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := str(m[key]); s != "" {
			return s
		}
	}
	return ""
}

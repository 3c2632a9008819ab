// File: internal/generalize/generalizer.go
// Infers a selector matching a family of similar elements from a single
// sample selector that matches one of them.
package generalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Kind identifies how a selector is interpreted.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
)

// Candidate is one proposed generalization together with its evidence.
type Candidate struct {
	Selector   string  `json:"selector"`
	Matches    int     `json:"matches"`
	Confidence float64 `json:"confidence"`
}

// Result reports the outcome of a generalization attempt. When Success is
// false, Generalized equals the original sample selector and the caller must
// treat it as matching only the sampled element.
type Result struct {
	Original    string      `json:"original"`
	Kind        Kind        `json:"kind"`
	Success     bool        `json:"success"`
	Generalized string      `json:"generalized"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

// Generalizer proposes and ranks candidate selectors against a document.
type Generalizer struct {
	logger *zap.Logger
}

// New creates a Generalizer.
func New(logger *zap.Logger) *Generalizer {
	return &Generalizer{logger: logger.Named("generalizer")}
}

// IsPathSelector reports whether a selector is path style rather than CSS.
func IsPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "./") ||
		strings.HasPrefix(selector, "(")
}

// Generalize infers a selector matching the whole family of elements similar
// to the one matched by sample. It never fails hard: any internal fault
// degrades to a failed Result carrying the original selector.
func (g *Generalizer) Generalize(htmlContent, sample string) *Result {
	if IsPathSelector(sample) {
		return g.generalizeXPath(htmlContent, sample)
	}
	return g.generalizeCSS(htmlContent, sample)
}

var (
	numericSuffixRe = regexp.MustCompile(`^(.+?)[-_](\d+)$`)
	classTokenRe    = regexp.MustCompile(`\.([\w-]+)`)
	idTokenRe       = regexp.MustCompile(`#([\w-]+)`)
	attrExprRe      = regexp.MustCompile(`\[([^\]]+)\]`)
	pseudoRe        = regexp.MustCompile(`:{1,2}[\w-]+(\([^)]*\))?`)
	xpathIDRe       = regexp.MustCompile(`@id=['"]([^'"]+)['"]`)
	indexSuffixRe   = regexp.MustCompile(`\[\d+\]`)
)

func (g *Generalizer) generalizeCSS(htmlContent, sample string) *Result {
	result := &Result{Original: sample, Kind: KindCSS, Generalized: sample}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		g.logger.Warn("Failed to parse document for generalization.", zap.Error(err))
		return result
	}

	matched := selectCSS(doc, sample)
	if matched == nil || matched.Length() == 0 {
		g.logger.Warn("Sample selector matched no elements.", zap.String("selector", sample))
		return result
	}

	node := matched.First()
	tag := goquery.NodeName(node)
	classes := strings.Fields(node.AttrOr("class", ""))

	var candidates []Candidate
	add := func(selector string, confidence float64) {
		if sel := selectCSS(doc, selector); sel != nil && sel.Length() > 1 {
			candidates = append(candidates, Candidate{Selector: selector, Matches: sel.Length(), Confidence: confidence})
		}
	}

	// Tag scoped by each individual class token.
	for _, class := range classes {
		add(fmt.Sprintf("%s.%s", tag, class), 0.9)
	}
	// Class token alone.
	for _, class := range classes {
		add("."+class, 0.8)
	}
	// Bare tag, the weakest shape.
	add(tag, 0.6)

	// Immediate parent tag with a descendant relationship.
	if parent := node.Parent(); parent.Length() > 0 {
		if parentTag := goquery.NodeName(parent); parentTag != "" && parentTag != "#document" {
			add(fmt.Sprintf("%s %s", parentTag, tag), 0.7)
		}
	}

	// Identifiers with a numeric suffix generalize to a prefix match.
	for _, selector := range numericSuffixCandidates(sample) {
		add(selector, 0.85)
	}

	// Pseudo classes and pseudo elements pin a selector to one state; retest
	// without them.
	if clean := pseudoRe.ReplaceAllString(sample, ""); clean != sample && strings.TrimSpace(clean) != "" {
		add(clean, 0.7)
	}

	return g.finish(result, candidates)
}

func (g *Generalizer) generalizeXPath(htmlContent, sample string) *Result {
	result := &Result{Original: sample, Kind: KindXPath, Generalized: sample}

	doc, err := htmlquery.Parse(strings.NewReader(htmlContent))
	if err != nil {
		g.logger.Warn("Failed to parse document for generalization.", zap.Error(err))
		return result
	}

	nodes := queryXPath(doc, sample)
	if len(nodes) == 0 {
		g.logger.Warn("Sample selector matched no elements.", zap.String("selector", sample))
		return result
	}

	node := nodes[0]
	tag := node.Data
	classes := strings.Fields(htmlquery.SelectAttr(node, "class"))

	var candidates []Candidate
	add := func(selector string, confidence float64) {
		if n := len(queryXPath(doc, selector)); n > 1 {
			candidates = append(candidates, Candidate{Selector: selector, Matches: n, Confidence: confidence})
		}
	}

	for _, class := range classes {
		add(fmt.Sprintf("//%s[contains(@class, '%s')]", tag, class), 0.9)
	}
	for _, class := range classes {
		add(fmt.Sprintf("//*[contains(@class, '%s')]", class), 0.8)
	}
	add("//"+tag, 0.6)

	if parent := node.Parent; parent != nil && parent.Type == html.ElementNode {
		add(fmt.Sprintf("//%s//%s", parent.Data, tag), 0.7)
	}

	// ID predicates with a numeric suffix generalize to starts-with.
	if m := xpathIDRe.FindStringSubmatch(sample); m != nil {
		if sm := numericSuffixRe.FindStringSubmatch(m[1]); sm != nil {
			add(fmt.Sprintf("//*[starts-with(@id, '%s')]", sm[1]), 0.85)
		}
	}

	// Absolute paths re-root as document-relative with positional
	// predicates stripped from the trailing segments.
	if truncated := truncatePath(sample); truncated != "" && truncated != sample {
		add(truncated, 0.8)
	}

	return g.finish(result, candidates)
}

// finish ranks candidates by (matches, confidence) and selects the best one.
func (g *Generalizer) finish(result *Result, candidates []Candidate) *Result {
	if len(candidates) == 0 {
		g.logger.Debug("No generalization candidate qualified.", zap.String("selector", result.Original))
		return result
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Matches != candidates[j].Matches {
			return candidates[i].Matches > candidates[j].Matches
		}
		return candidates[i].Confidence > candidates[j].Confidence
	})

	result.Candidates = candidates
	result.Generalized = candidates[0].Selector
	result.Success = true
	g.logger.Debug("Generalized selector.",
		zap.String("original", result.Original),
		zap.String("generalized", result.Generalized),
		zap.Int("matches", candidates[0].Matches))
	return result
}

// numericSuffixCandidates derives prefix-match selectors from identifiers in
// the sample that end in -<number> or _<number>: class tokens, id tokens and
// attribute expressions.
func numericSuffixCandidates(sample string) []string {
	var out []string

	for _, m := range classTokenRe.FindAllStringSubmatch(sample, -1) {
		if sm := numericSuffixRe.FindStringSubmatch(m[1]); sm != nil {
			generalized := strings.Replace(sample, m[0], fmt.Sprintf(`[class^="%s"]`, sm[1]), 1)
			out = append(out, generalized)
		}
	}
	for _, m := range idTokenRe.FindAllStringSubmatch(sample, -1) {
		if sm := numericSuffixRe.FindStringSubmatch(m[1]); sm != nil {
			generalized := strings.Replace(sample, m[0], fmt.Sprintf(`[id^="%s"]`, sm[1]), 1)
			out = append(out, generalized)
		}
	}
	for _, m := range attrExprRe.FindAllStringSubmatch(sample, -1) {
		parts := strings.SplitN(m[1], "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimRight(parts[0], "^*$~|")
		value := strings.Trim(parts[1], `"'`)
		if sm := numericSuffixRe.FindStringSubmatch(value); sm != nil {
			out = append(out, fmt.Sprintf(`[%s^="%s"]`, name, sm[1]))
		}
	}
	return out
}

// truncatePath strips positional predicates from the trailing segments of an
// absolute path and re-roots it as a document-relative one.
func truncatePath(sample string) string {
	if !strings.HasPrefix(sample, "/html/") {
		return ""
	}
	parts := strings.Split(sample, "/")

	// The last segment carrying a positional predicate marks where the path
	// stops being structural boilerplate.
	lastIndexed := 0
	for i, part := range parts {
		if part != "" && strings.Contains(part, "[") {
			lastIndexed = i
		}
	}
	if lastIndexed == 0 {
		return ""
	}

	var cleaned []string
	for _, part := range parts[lastIndexed:] {
		if part == "" {
			continue
		}
		cleaned = append(cleaned, indexSuffixRe.ReplaceAllString(part, ""))
	}
	if len(cleaned) == 0 {
		return ""
	}
	return "//" + strings.Join(cleaned, "/")
}

// selectCSS evaluates a CSS selector, treating invalid selectors as matching
// nothing so that one broken candidate never aborts the others.
func selectCSS(doc *goquery.Document, selector string) *goquery.Selection {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return doc.FindMatcher(matcher)
}

// queryXPath evaluates a path expression, swallowing syntax errors.
func queryXPath(doc *html.Node, expr string) []*html.Node {
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil
	}
	return nodes
}

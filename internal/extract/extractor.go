// File: internal/extract/extractor.go
// Schema-driven extraction of link sets and content records from parsed
// documents. All entry points degrade to empty results on malformed input;
// extraction problems are logged, never raised.
package extract

import (
	"net/url"
	"sort"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// contentFallbacks are tried in order when a schema names no body container
// or the named one matches nothing.
var contentFallbacks = []string{"article", "main", ".content", ".entry-content", ".post-content"}

// linkContainerCandidates rank the regions scanned for anchors when no
// schema guides URL extraction.
var linkContainerCandidates = []string{"main", "article", ".content", "#content", "nav"}

// Metadata candidates for the generic content path, tried in order. Meta
// tags yield their content attribute, time elements their datetime.
var (
	genericTitleCandidates  = []string{"h1", "header h1", ".entry-title", ".post-title", "article h1", ".headline"}
	genericDateCandidates   = []string{"time", `[itemprop="datePublished"]`, ".published", ".post-date", `meta[property="article:published_time"]`}
	genericAuthorCandidates = []string{`[itemprop="author"]`, ".author", ".byline", `[rel="author"]`, `meta[name="author"]`}
)

// childContentNames are the children whose markup feeds the content body in
// a selectors-format schema.
var childContentNames = map[string]struct{}{
	"content":    {},
	"paragraphs": {},
	"sections":   {},
}

// Extractor applies normalized schemas to HTML documents.
type Extractor struct {
	base   *url.URL
	logger *zap.Logger
	md     *md.Converter
}

// New creates an Extractor resolving relative links against baseURL.
func New(baseURL string, logger *zap.Logger) *Extractor {
	base, err := url.Parse(baseURL)
	if err != nil {
		logger.Warn("Unparsable base URL; relative links will not resolve.",
			zap.String("base_url", baseURL), zap.Error(err))
		base = nil
	}
	return &Extractor{
		base:   base,
		logger: logger.Named("extractor"),
		md:     newMarkdownConverter(),
	}
}

// ExtractURLs harvests candidate links from a document according to the
// schema. The result is deduplicated, absolute and sorted.
func (e *Extractor) ExtractURLs(htmlContent string, schema *Schema) []string {
	if strings.TrimSpace(htmlContent) == "" {
		return nil
	}
	if schema == nil {
		schema = &Schema{Format: FormatGeneric}
	}

	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		e.logger.Warn("Failed to parse document for URL extraction.", zap.Error(err))
		return nil
	}
	doc := goquery.NewDocumentFromNode(root)

	var raw []string
	switch schema.Format {
	case FormatSelectors:
		raw = e.urlsFromSelectors(doc, root, schema)
	case FormatLegacy:
		raw = e.urlsFromLegacy(doc, schema)
	default:
		raw = e.urlsGeneric(doc)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, href := range raw {
		if !e.passesFilters(href, schema.URLs) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	sort.Strings(out)
	return out
}

func (e *Extractor) urlsFromLegacy(doc *goquery.Document, schema *Schema) []string {
	rule := schema.URLs

	scope := doc.Selection
	if rule.Container != "" && rule.Container != "body" {
		if containers := cssSelect(doc.Selection, rule.Container); containers != nil && containers.Length() > 0 {
			scope = containers
		} else {
			e.logger.Debug("URL container matched nothing; scanning whole document.",
				zap.String("container", rule.Container))
		}
	}

	var out []string
	targets := cssSelect(scope, rule.LinkSelector)
	if targets == nil {
		return nil
	}
	targets.Each(func(_ int, sel *goquery.Selection) {
		if href := e.absoluteAttr(sel, rule.Attribute); href != "" {
			out = append(out, href)
		}
	})
	return out
}

func (e *Extractor) urlsFromSelectors(doc *goquery.Document, root *html.Node, schema *Schema) []string {
	var out []string
	for _, def := range schema.Selectors {
		for _, sel := range e.selectionsFor(doc, root, def) {
			// A url field only extracts when typed as an attribute read;
			// anything else falls through to the anchor scan.
			if rule, ok := def.Fields["url"]; ok && rule.Type == "attribute" {
				target := sel
				if rule.Selector != "" && rule.Selector != "." {
					target = cssSelect(sel, rule.Selector)
				}
				if target == nil || target.Length() == 0 {
					continue
				}
				attribute := rule.Attribute
				if attribute == "" {
					attribute = "href"
				}
				if href := e.absoluteAttr(target.First(), attribute); href != "" {
					out = append(out, href)
				}
				continue
			}
			// No explicit url field: harvest every anchor in scope.
			sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				if href := e.absoluteAttr(a, "href"); href != "" {
					out = append(out, href)
				}
			})
		}
	}
	return out
}

func (e *Extractor) urlsGeneric(doc *goquery.Document) []string {
	for _, candidate := range linkContainerCandidates {
		scope := cssSelect(doc.Selection, candidate)
		if scope == nil || scope.Length() == 0 {
			continue
		}
		var out []string
		scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			if href := e.absoluteAttr(a, "href"); href != "" {
				out = append(out, href)
			}
		})
		if len(out) > 0 {
			return out
		}
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href := e.absoluteAttr(a, "href"); href != "" {
			out = append(out, href)
		}
	})
	return out
}

func (e *Extractor) passesFilters(href string, rule URLRule) bool {
	if len(rule.Include) > 0 {
		matched := false
		for _, re := range rule.Include {
			if re.MatchString(href) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, re := range rule.Exclude {
		if re.MatchString(href) {
			return false
		}
	}
	return true
}

// ExtractContent builds a structured record from a document according to the
// schema. A record always carries a title, a markdown body when any content
// region was found, and the document's outbound URLs.
func (e *Extractor) ExtractContent(htmlContent string, schema *Schema) map[string]any {
	result := map[string]any{}
	if strings.TrimSpace(htmlContent) == "" {
		return result
	}
	if schema == nil {
		schema = &Schema{Format: FormatGeneric}
	}

	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		e.logger.Warn("Failed to parse document for content extraction.", zap.Error(err))
		return result
	}
	doc := goquery.NewDocumentFromNode(root)

	switch schema.Format {
	case FormatSelectors:
		e.contentFromSelectors(doc, root, schema, result)
	case FormatLegacy:
		e.contentFromLegacy(doc, schema, result)
	default:
		e.contentGeneric(doc, result)
	}

	e.ensureMarkdown(doc, result)

	if _, ok := result["title"]; !ok {
		result["title"] = e.documentTitle(doc)
	}
	result["urls"] = e.outboundURLs(doc)
	result["extracted_at"] = time.Now().UTC().Format(time.RFC3339)
	return result
}

func (e *Extractor) contentFromLegacy(doc *goquery.Document, schema *Schema, result map[string]any) {
	rule := schema.Content

	titleSelector := rule.Title
	if titleSelector == "" {
		titleSelector = "h1"
	}
	if title := firstText(doc.Selection, titleSelector); title != "" {
		result["title"] = title
	}
	if rule.Author != "" {
		if author := firstText(doc.Selection, rule.Author); author != "" {
			result["author"] = author
		}
	}
	if rule.Date != "" {
		if date := e.dateValue(doc, rule); date != "" {
			result["date"] = date
		}
	}

	body := e.findBody(doc, rule.Container)
	if body != nil {
		rawHTML, err := goquery.OuterHtml(body)
		if err != nil {
			e.logger.Warn("Failed to serialize content container.", zap.Error(err))
		} else {
			result["html_content"] = rawHTML
			markdown := e.toMarkdown(e.stripSubtrees(rawHTML, rule.Remove))
			result["raw_content"] = markdown
			result["content_markdown"] = markdown
		}
	}

	for name, fieldRule := range rule.CustomFields {
		if value := e.fieldValue(doc.Selection, fieldRule); value != "" {
			result[name] = value
		}
	}
}

func (e *Extractor) contentFromSelectors(doc *goquery.Document, root *html.Node, schema *Schema, result map[string]any) {
	var fragments []string

	for _, def := range schema.Selectors {
		for _, sel := range e.selectionsFor(doc, root, def) {
			for name, rule := range def.Fields {
				if name == "url" {
					continue
				}
				if name == "content" {
					fragments = append(fragments, e.fieldHTML(sel, rule)...)
					continue
				}
				if _, exists := result[name]; exists {
					continue
				}
				if value := e.fieldValue(sel, rule); value != "" {
					result[name] = value
				}
			}
			for name, child := range def.Children {
				if child.Type != "elements" || child.Selector == "" {
					continue
				}
				if _, isContent := childContentNames[name]; !isContent {
					continue
				}
				targets := cssSelect(sel, child.Selector)
				if targets == nil {
					continue
				}
				targets.Each(func(_ int, t *goquery.Selection) {
					if fragment, err := goquery.OuterHtml(t); err == nil {
						fragments = append(fragments, fragment)
					}
				})
			}
		}
	}

	if len(fragments) > 0 {
		combined := strings.Join(fragments, "\n")
		result["html_content"] = combined
		result["content_markdown"] = e.toMarkdown(combined)
	}
}

func (e *Extractor) contentGeneric(doc *goquery.Document, result map[string]any) {
	for _, candidate := range genericTitleCandidates {
		if title := firstText(doc.Selection, candidate); title != "" {
			result["title"] = title
			break
		}
	}
	if date := firstCandidateValue(doc.Selection, genericDateCandidates, "datetime"); date != "" {
		result["date"] = date
	}
	if author := firstCandidateValue(doc.Selection, genericAuthorCandidates, ""); author != "" {
		result["author"] = author
	}
	body := e.findBody(doc, "")
	if body == nil {
		body = doc.Find("body").First()
		if body.Length() == 0 {
			return
		}
	}
	if rawHTML, err := goquery.OuterHtml(body); err == nil {
		result["html_content"] = rawHTML
		result["content_markdown"] = e.toMarkdown(rawHTML)
	}
}

// ensureMarkdown guarantees the record carries a markdown body whenever any
// content field exists, synthesizing it from the HTML field if needed.
func (e *Extractor) ensureMarkdown(doc *goquery.Document, result map[string]any) {
	if markdown, ok := result["content_markdown"].(string); ok && markdown != "" {
		return
	}
	if content, ok := result["content"].(string); ok && content != "" {
		result["content_markdown"] = content
		return
	}
	if rawHTML, ok := result["html_content"].(string); ok && rawHTML != "" {
		if markdown := e.toMarkdown(rawHTML); markdown != "" {
			result["content_markdown"] = markdown
			return
		}
	}

	// Nothing schema-guided produced a body; fall back to the main regions
	// of the document itself.
	for _, candidate := range []string{"main", "article", "body"} {
		sel := doc.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		if rawHTML, err := goquery.OuterHtml(sel); err == nil {
			if markdown := e.toMarkdown(rawHTML); markdown != "" {
				result["content_markdown"] = markdown
				if _, ok := result["html_content"]; !ok {
					result["html_content"] = rawHTML
				}
				return
			}
		}
	}
}

// findBody resolves the content container, trying the schema's selector
// first and then the conventional fallbacks.
func (e *Extractor) findBody(doc *goquery.Document, container string) *goquery.Selection {
	candidates := contentFallbacks
	if container != "" {
		candidates = append([]string{container}, contentFallbacks...)
	}
	for _, candidate := range candidates {
		sel := cssSelect(doc.Selection, candidate)
		if sel != nil && sel.Length() > 0 {
			return sel.First()
		}
	}
	return nil
}

// selectionsFor resolves a selectors-format entry to its matched elements,
// via CSS or path expression.
func (e *Extractor) selectionsFor(doc *goquery.Document, root *html.Node, def SelectorDef) []*goquery.Selection {
	if def.CSS != "" {
		matched := cssSelect(doc.Selection, def.CSS)
		if matched == nil {
			return nil
		}
		var out []*goquery.Selection
		matched.Each(func(_ int, sel *goquery.Selection) {
			out = append(out, sel)
		})
		return out
	}
	if def.XPath != "" {
		nodes, err := htmlquery.QueryAll(root, def.XPath)
		if err != nil {
			e.logger.Debug("Invalid path expression in schema.",
				zap.String("xpath", def.XPath), zap.Error(err))
			return nil
		}
		var out []*goquery.Selection
		for _, node := range nodes {
			out = append(out, newSingleSelection(node))
		}
		return out
	}
	return nil
}

func (e *Extractor) dateValue(doc *goquery.Document, rule ContentRule) string {
	sel := cssSelect(doc.Selection, rule.Date)
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	first := sel.First()
	if rule.DateAttribute != "" {
		return strings.TrimSpace(first.AttrOr(rule.DateAttribute, ""))
	}
	return strings.TrimSpace(first.Text())
}

// fieldValue pulls one scalar from an element scope: an attribute when the
// rule says so, text otherwise. "." selects the scope element itself.
func (e *Extractor) fieldValue(scope *goquery.Selection, rule FieldRule) string {
	target := scope
	if rule.Selector != "" && rule.Selector != "." {
		target = cssSelect(scope, rule.Selector)
	}
	if target == nil || target.Length() == 0 {
		return ""
	}
	first := target.First()
	if rule.Type == "attribute" || rule.Attribute != "" {
		attribute := rule.Attribute
		if attribute == "" {
			attribute = "href"
		}
		return strings.TrimSpace(first.AttrOr(attribute, ""))
	}
	return strings.TrimSpace(first.Text())
}

// fieldHTML returns the outer markup of every element the rule selects.
func (e *Extractor) fieldHTML(scope *goquery.Selection, rule FieldRule) []string {
	target := scope
	if rule.Selector != "" && rule.Selector != "." {
		target = cssSelect(scope, rule.Selector)
	}
	if target == nil {
		return nil
	}
	var out []string
	target.Each(func(_ int, sel *goquery.Selection) {
		if fragment, err := goquery.OuterHtml(sel); err == nil {
			out = append(out, fragment)
		}
	})
	return out
}

// stripSubtrees removes the matched subtrees from a fragment without
// touching the document it came from. The fragment is re-parsed into its own
// tree, pruned and re-serialized.
func (e *Extractor) stripSubtrees(fragment string, removeSelectors []string) string {
	if len(removeSelectors) == 0 {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	for _, selector := range removeSelectors {
		if sel := cssSelect(doc.Selection, selector); sel != nil {
			sel.Remove()
		}
	}
	cleaned, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return cleaned
}

func (e *Extractor) absoluteAttr(sel *goquery.Selection, attribute string) string {
	value := sel.AttrOr(attribute, "")
	if !IsNavigableHref(value) {
		return ""
	}
	return ResolveURL(e.base, value)
}

func (e *Extractor) outboundURLs(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := e.absoluteAttr(a, "href")
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, href)
	})
	return out
}

func (e *Extractor) documentTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return "Untitled"
}

// firstCandidateValue walks candidate selectors in order and returns the
// first non-empty value. Meta tags are read from their content attribute;
// other elements from attr when present, otherwise their text.
func firstCandidateValue(scope *goquery.Selection, candidates []string, attr string) string {
	for _, candidate := range candidates {
		sel := cssSelect(scope, candidate)
		if sel == nil || sel.Length() == 0 {
			continue
		}
		first := sel.First()
		if goquery.NodeName(first) == "meta" {
			if value := strings.TrimSpace(first.AttrOr("content", "")); value != "" {
				return value
			}
			continue
		}
		if attr != "" {
			if value := strings.TrimSpace(first.AttrOr(attr, "")); value != "" {
				return value
			}
		}
		if value := strings.TrimSpace(first.Text()); value != "" {
			return value
		}
	}
	return ""
}

func firstText(scope *goquery.Selection, selector string) string {
	sel := cssSelect(scope, selector)
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}

// cssSelect evaluates a selector, treating invalid ones as matching nothing
// so malformed schemas degrade instead of panicking.
func cssSelect(scope *goquery.Selection, selector string) *goquery.Selection {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return scope.FindMatcher(matcher)
}

// newSingleSelection wraps a raw parse node so path-selected elements flow
// through the same field logic as CSS-selected ones.
func newSingleSelection(node *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(node).Selection
}

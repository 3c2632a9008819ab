// File: internal/workflow/links.go
// Link harvesting strategies. The baseline strategy trusts the author's
// selector literally; the generalizing strategy widens a single sample to
// the whole family of similar elements and falls back to a whole-document
// anchor scan when even that finds nothing.
package workflow

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/extract"
	"github.com/xkilldash9x/harvest-cli/internal/generalize"
)

// LinkExtractor harvests link records from the driver's current page.
type LinkExtractor interface {
	ExtractLinks(ctx context.Context, driver Driver, spec *ElementSpec) ([]extract.Link, error)
}

// BaselineLinks queries the sample selector as written.
type BaselineLinks struct {
	logger *zap.Logger
}

// NewBaselineLinks creates the literal-selector strategy.
func NewBaselineLinks(logger *zap.Logger) *BaselineLinks {
	return &BaselineLinks{logger: logger.Named("links")}
}

// ExtractLinks implements LinkExtractor.
func (b *BaselineLinks) ExtractLinks(ctx context.Context, driver Driver, spec *ElementSpec) ([]extract.Link, error) {
	if spec == nil || spec.Sample == "" {
		return nil, nil
	}
	return collectFromSelector(ctx, driver, spec.Sample, b.logger)
}

// GeneralizedLinks widens the sample selector before harvesting.
type GeneralizedLinks struct {
	generalizer *generalize.Generalizer
	logger      *zap.Logger
}

// NewGeneralizedLinks creates the generalizing strategy.
func NewGeneralizedLinks(g *generalize.Generalizer, logger *zap.Logger) *GeneralizedLinks {
	return &GeneralizedLinks{generalizer: g, logger: logger.Named("links")}
}

// ExtractLinks implements LinkExtractor.
func (g *GeneralizedLinks) ExtractLinks(ctx context.Context, driver Driver, spec *ElementSpec) ([]extract.Link, error) {
	if spec == nil || spec.Sample == "" {
		return nil, nil
	}

	selector := spec.Sample
	htmlContent, err := driver.Content(ctx)
	if err != nil {
		return nil, err
	}

	result := g.generalizer.Generalize(htmlContent, selector)
	if result.Success {
		g.logger.Debug("Using generalized selector for link harvest.",
			zap.String("original", selector),
			zap.String("generalized", result.Generalized))
		selector = result.Generalized
	}

	links, err := collectFromSelector(ctx, driver, selector, g.logger)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		return links, nil
	}

	// Last resort: scan every anchor in the document snapshot.
	g.logger.Warn("Selector harvested nothing; scanning whole document for anchors.",
		zap.String("selector", selector))
	base := currentBase(ctx, driver)
	return extract.CollectLinks(htmlContent, base), nil
}

// collectFromSelector resolves the matched elements into link records,
// following nested anchors when the match itself carries no href.
func collectFromSelector(ctx context.Context, driver Driver, selector string, logger *zap.Logger) ([]extract.Link, error) {
	elements, err := driver.QuerySelectorAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	base := currentBase(ctx, driver)

	seen := make(map[string]struct{})
	var links []extract.Link
	for _, element := range elements {
		href, ok, err := element.Attribute(ctx, "href")
		if err != nil {
			logger.Debug("Failed to read href from element.", zap.Error(err))
			continue
		}
		text, _ := element.Text(ctx)

		if !ok || !extract.IsNavigableHref(href) {
			// The match may be a card wrapping the anchor; look one
			// level down in its markup.
			href, ok = nestedHref(ctx, element, base)
			if !ok {
				continue
			}
		} else {
			href = extract.ResolveURL(base, href)
		}
		if href == "" {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, extract.Link{Href: href, Text: strings.TrimSpace(text)})
	}
	return links, nil
}

func nestedHref(ctx context.Context, element Element, base *url.URL) (string, bool) {
	markup, err := element.HTML(ctx, true)
	if err != nil {
		return "", false
	}
	nested := extract.CollectLinks(markup, base)
	if len(nested) == 0 {
		return "", false
	}
	return nested[0].Href, true
}

func currentBase(ctx context.Context, driver Driver) *url.URL {
	raw, err := driver.CurrentURL(ctx)
	if err != nil || raw == "" {
		return nil
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return base
}

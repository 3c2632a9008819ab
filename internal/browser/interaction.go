// File: internal/browser/interaction.go
// The driver surface of a session: navigation, DOM access and script
// evaluation for the workflow engine.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/workflow"
)

// Navigate loads a URL and blocks until the page stabilizes.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.NavigationTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return s.stabilize(navCtx)
}

// CurrentURL reports the address of the loaded page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.runActionsWithTimeout(ctx, s.cfg.Network.ActionTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return location, nil
}

// Content returns the serialized DOM of the loaded page.
func (s *Session) Content(ctx context.Context) (string, error) {
	var content string
	if err := s.runActionsWithTimeout(ctx, s.cfg.Network.ActionTimeout,
		chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capturing page content: %w", err)
	}
	return content, nil
}

// QuerySelectorAll matches a selector against the live page. CSS selectors
// go through querySelectorAll, path selectors through DOM search. No matches
// is an empty result, not an error.
func (s *Session) QuerySelectorAll(ctx context.Context, selector string) ([]workflow.Element, error) {
	var nodes []*cdp.Node
	queryOption := chromedp.ByQueryAll
	if isPathSelector(selector) {
		queryOption = chromedp.BySearch
	}

	err := s.runActionsWithTimeout(ctx, s.cfg.Network.ActionTimeout,
		chromedp.Nodes(selector, &nodes, queryOption, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}

	elements := make([]workflow.Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{session: s, node: node})
	}
	return elements, nil
}

// Evaluate runs a script in the page and decodes its result into out.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	if err := s.runActionsWithTimeout(ctx, s.cfg.Network.ActionTimeout, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// WaitForNetworkIdle blocks until in-flight requests settle.
func (s *Session) WaitForNetworkIdle(ctx context.Context) error {
	waitCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	idleCtx, idleCancel := context.WithTimeout(waitCtx, s.cfg.Network.ActionTimeout)
	defer idleCancel()
	return s.idle.WaitIdle(idleCtx, s.cfg.Network.QuietPeriod)
}

func isPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") ||
		strings.HasPrefix(selector, "./") ||
		strings.HasPrefix(selector, "(")
}

// File: internal/browser/element.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/harvest-cli/internal/workflow"
)

// element wraps a resolved DOM node. Interactions address the node through
// its full path, which stays valid as long as the page does not re-render
// the subtree.
type element struct {
	session *Session
	node    *cdp.Node
}

var _ workflow.Element = (*element)(nil)

func (e *element) path() string {
	return e.node.FullXPath()
}

// Attribute returns the named attribute and whether it is present. Reads
// come from the node snapshot taken at query time.
func (e *element) Attribute(_ context.Context, name string) (string, bool, error) {
	attrs := e.node.Attributes
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

// Text returns the rendered text content of the element.
func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.runActionsWithTimeout(ctx, e.session.cfg.Network.ActionTimeout,
		chromedp.Text(e.path(), &text, chromedp.BySearch))
	if err != nil {
		return "", fmt.Errorf("reading element text: %w", err)
	}
	return text, nil
}

// HTML returns the element markup, outer or inner.
func (e *element) HTML(ctx context.Context, outer bool) (string, error) {
	var markup string
	action := chromedp.InnerHTML(e.path(), &markup, chromedp.BySearch)
	if outer {
		action = chromedp.OuterHTML(e.path(), &markup, chromedp.BySearch)
	}
	if err := e.session.runActionsWithTimeout(ctx, e.session.cfg.Network.ActionTimeout, action); err != nil {
		return "", fmt.Errorf("reading element markup: %w", err)
	}
	return markup, nil
}

// Click scrolls the element into view and dispatches a click on it.
func (e *element) Click(ctx context.Context) error {
	err := e.session.runActionsWithTimeout(ctx, e.session.cfg.Network.ActionTimeout,
		chromedp.ScrollIntoView(e.path(), chromedp.BySearch),
		chromedp.MouseClickNode(e.node))
	if err != nil {
		return fmt.Errorf("clicking element: %w", err)
	}
	return nil
}

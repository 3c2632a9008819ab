// File: internal/workflow/driver.go
package workflow

import "context"

// Element is a handle to a live element on the current page.
type Element interface {
	// Attribute returns the named attribute and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Text returns the rendered text content of the element.
	Text(ctx context.Context) (string, error)
	// HTML returns the element markup, outer or inner.
	HTML(ctx context.Context, outer bool) (string, error)
	// Click dispatches a click on the element.
	Click(ctx context.Context) error
}

// Driver is the page-automation capability the engine runs against. The
// production implementation drives a headless browser; tests substitute a
// scripted fake.
type Driver interface {
	// Navigate loads a URL and waits for the page to stabilize.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the address of the loaded page.
	CurrentURL(ctx context.Context) (string, error)
	// Content returns the serialized DOM of the loaded page.
	Content(ctx context.Context) (string, error)
	// QuerySelectorAll matches a CSS or path selector against the live
	// page. No matches is a nil slice, not an error.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)
	// Evaluate runs a script in the page and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	// WaitForNetworkIdle blocks until in-flight requests settle.
	WaitForNetworkIdle(ctx context.Context) error
	// Close tears the session down.
	Close(ctx context.Context) error
}

package workflow

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeElement is a scripted page element.
type fakeElement struct {
	attrs    map[string]string
	text     string
	inner    string
	outer    string
	clickErr error
	clicks   int
}

func (f *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := f.attrs[name]
	return value, ok, nil
}

func (f *fakeElement) Text(context.Context) (string, error) { return f.text, nil }

func (f *fakeElement) HTML(_ context.Context, outer bool) (string, error) {
	if outer {
		return f.outer, nil
	}
	return f.inner, nil
}

func (f *fakeElement) Click(context.Context) error {
	f.clicks++
	return f.clickErr
}

// fakeDriver is a scripted page driver. Selector lookups go through onQuery
// when set, otherwise through the static selectors map.
type fakeDriver struct {
	html      string
	url       string
	navigated []string
	navErr    map[string]error
	selectors map[string][]*fakeElement
	onQuery   func(selector string) []*fakeElement
	closed    bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		url:       "https://example.com/start",
		selectors: map[string][]*fakeElement{},
	}
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	if err := f.navErr[url]; err != nil {
		return err
	}
	f.navigated = append(f.navigated, url)
	f.url = url
	return nil
}

func (f *fakeDriver) CurrentURL(context.Context) (string, error) { return f.url, nil }

func (f *fakeDriver) Content(context.Context) (string, error) { return f.html, nil }

func (f *fakeDriver) QuerySelectorAll(_ context.Context, selector string) ([]Element, error) {
	var matched []*fakeElement
	if f.onQuery != nil {
		matched = f.onQuery(selector)
	} else {
		matched = f.selectors[selector]
	}
	elements := make([]Element, len(matched))
	for i, m := range matched {
		elements[i] = m
	}
	return elements, nil
}

func (f *fakeDriver) Evaluate(_ context.Context, script string, _ any) error {
	return fmt.Errorf("no scripted result for %q", script)
}

func (f *fakeDriver) WaitForNetworkIdle(context.Context) error { return nil }

func (f *fakeDriver) Close(context.Context) error {
	f.closed = true
	return nil
}

var _ Driver = (*fakeDriver)(nil)
var _ Element = (*fakeElement)(nil)

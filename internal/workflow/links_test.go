package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/generalize"
)

const linkPageHTML = `
<html><body>
  <ul>
    <li class="card-1"><a href="/posts/1">One</a></li>
    <li class="card-2"><a href="/posts/2">Two</a></li>
    <li class="card-3"><a href="/posts/3">Three</a></li>
  </ul>
</body></html>`

func TestBaselineLinksUsesSelectorLiterally(t *testing.T) {
	driver := newFakeDriver()
	driver.url = "https://example.com/blog"
	driver.selectors[".card-1 a"] = []*fakeElement{anchor("/posts/1", "One")}

	strategy := NewBaselineLinks(zap.NewNop())
	links, err := strategy.ExtractLinks(context.Background(), driver, &ElementSpec{Sample: ".card-1 a"})
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/posts/1", links[0].Href)
	assert.Equal(t, "One", links[0].Text)
}

func TestGeneralizedLinksWidensSample(t *testing.T) {
	driver := newFakeDriver()
	driver.url = "https://example.com/blog"
	driver.html = linkPageHTML
	driver.selectors[`[class^="card"] a`] = []*fakeElement{
		anchor("/posts/1", "One"),
		anchor("/posts/2", "Two"),
		anchor("/posts/3", "Three"),
	}

	strategy := NewGeneralizedLinks(generalize.New(zap.NewNop()), zap.NewNop())
	links, err := strategy.ExtractLinks(context.Background(), driver, &ElementSpec{Sample: ".card-1 a"})
	require.NoError(t, err)

	require.Len(t, links, 3)
	assert.Equal(t, "https://example.com/posts/2", links[1].Href)
}

func TestGeneralizedLinksFallsBackToDocumentScan(t *testing.T) {
	// The driver matches nothing for any selector, so the strategy must
	// harvest anchors straight from the document snapshot.
	driver := newFakeDriver()
	driver.url = "https://example.com/blog"
	driver.html = linkPageHTML

	strategy := NewGeneralizedLinks(generalize.New(zap.NewNop()), zap.NewNop())
	links, err := strategy.ExtractLinks(context.Background(), driver, &ElementSpec{Sample: ".card-1 a"})
	require.NoError(t, err)

	require.Len(t, links, 3)
	assert.Equal(t, "https://example.com/posts/1", links[0].Href)
}

func TestLinkExtractionSkipsNonNavigableAnchors(t *testing.T) {
	driver := newFakeDriver()
	driver.url = "https://example.com/blog"
	driver.selectors[".nav a"] = []*fakeElement{
		anchor("/ok", "OK"),
		anchor("#frag", "Fragment"),
		anchor("javascript:void(0)", "Noop"),
		anchor("/ok", "Duplicate"),
	}

	strategy := NewBaselineLinks(zap.NewNop())
	links, err := strategy.ExtractLinks(context.Background(), driver, &ElementSpec{Sample: ".nav a"})
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/ok", links[0].Href)
}

func TestLinkExtractionFollowsNestedAnchor(t *testing.T) {
	driver := newFakeDriver()
	driver.url = "https://example.com/blog"
	driver.selectors[".card"] = []*fakeElement{
		{text: "Card One", outer: `<div class="card"><a href="/posts/1">One</a></div>`},
	}

	strategy := NewBaselineLinks(zap.NewNop())
	links, err := strategy.ExtractLinks(context.Background(), driver, &ElementSpec{Sample: ".card"})
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/posts/1", links[0].Href)
}

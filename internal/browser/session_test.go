package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/harvest-cli/internal/config"
)

func TestBuildAllocatorOptions(t *testing.T) {
	opts := buildAllocatorOptions(config.BrowserConfig{
		Headless:     true,
		UserAgent:    "harvest-test",
		DisableCache: true,
		Args:         []string{"--disable-gpu"},
	})

	// Defaults plus headless, first-run suppression, user agent, cache and
	// the extra arg.
	assert.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
}

func TestTrimFlag(t *testing.T) {
	assert.Equal(t, "disable-gpu", trimFlag("--disable-gpu"))
	assert.Equal(t, "no-sandbox", trimFlag("-no-sandbox"))
	assert.Equal(t, "plain", trimFlag("plain"))
}

func TestIsPathSelector(t *testing.T) {
	assert.True(t, isPathSelector("//a"))
	assert.True(t, isPathSelector("/html/body"))
	assert.True(t, isPathSelector("./div"))
	assert.True(t, isPathSelector("(//a)[1]"))
	assert.False(t, isPathSelector("div.card"))
}

func TestCombineContextCancelsWithSecondary(t *testing.T) {
	parent := context.Background()
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := CombineContext(parent, secondary)
	defer cancel()

	select {
	case <-combined.Done():
		t.Fatal("combined context cancelled prematurely")
	default:
	}

	cancelSecondary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe secondary cancellation")
	}
}

func TestCombineContextCancelsWithParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	combined, cancel := CombineContext(parent, context.Background())
	defer cancel()

	cancelParent()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe parent cancellation")
	}
}

package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/fetch"
)

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/", page(`<html><body><main>
		<a href="/posts/first-post">First</a>
		<a href="/posts/second-post">Second</a>
		<a href="/admin/login">Admin</a>
		<a href="https://elsewhere.example.com/out">External</a>
	</main></body></html>`))
	mux.HandleFunc("/posts/first-post", page(`<html><head><title>First Post</title></head>
		<body><main><h1>First Post</h1><p>Alpha body.</p></main></body></html>`))
	mux.HandleFunc("/posts/second-post", page(`<html><head><title>Second Post</title></head>
		<body><main><h1>Second Post</h1><p>Beta body.</p></main></body></html>`))
	mux.HandleFunc("/admin/login", page(`<html><body><h1>Login</h1></body></html>`))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testCrawlConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Delay:      time.Millisecond,
		MaxURLs:    10,
	}
}

func TestCrawlerWalksSiteAndSavesContent(t *testing.T) {
	server := testSite(t)
	cfg := testCrawlConfig()
	dir := t.TempDir()

	job := &Job{
		Name:     "test-site",
		StartURL: server.URL + "/",
		URLPatterns: PatternConfig{
			Exclude: []string{"/admin/"},
			Content: []string{"/posts/"},
		},
	}

	crawler, err := New(cfg, job, fetch.New(cfg, zap.NewNop()), dir, zap.NewNop())
	require.NoError(t, err)

	stats, err := crawler.Run(context.Background())
	require.NoError(t, err)

	// Index plus the two posts; the admin page is excluded, the external
	// link is off-site.
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Saved)
	assert.Zero(t, stats.Failed)

	data, err := os.ReadFile(filepath.Join(dir, "first_post.md"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# First Post\n"))
	assert.Contains(t, text, "Alpha body.")

	meta, err := os.ReadFile(filepath.Join(dir, "first_post.json"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"markdown_file": "first_post.md"`)
	assert.NotContains(t, string(meta), "Alpha body.", "bulk content stays out of the metadata sidecar")
}

func TestCrawlerRespectsURLBudget(t *testing.T) {
	server := testSite(t)
	cfg := testCrawlConfig()
	cfg.MaxURLs = 1

	job := &Job{Name: "budget", StartURL: server.URL + "/"}
	crawler, err := New(cfg, job, fetch.New(cfg, zap.NewNop()), t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	stats, err := crawler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}

func TestCrawlerCountsFailedPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/gone-page">Gone</a></body></html>`))
	})
	mux.HandleFunc("/gone-page", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testCrawlConfig()
	job := &Job{Name: "failures", StartURL: server.URL + "/"}
	crawler, err := New(cfg, job, fetch.New(cfg, zap.NewNop()), t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	stats, err := crawler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
}

func TestJobValidation(t *testing.T) {
	assert.Error(t, (&Job{StartURL: "https://example.com"}).Validate())
	assert.Error(t, (&Job{Name: "n"}).Validate())
	assert.NoError(t, (&Job{Name: "n", StartURL: "https://example.com"}).Validate())
}

func TestJobRejectsBadPatterns(t *testing.T) {
	job := &Job{
		Name:        "bad",
		StartURL:    "https://example.com",
		URLPatterns: PatternConfig{Include: []string{"[unclosed"}},
	}
	_, err := job.CompilePatterns()
	assert.Error(t, err)
}

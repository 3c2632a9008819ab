// File: internal/crawl/crawler.go
// A polite breadth-first crawler over the static fetch path. Stays on the
// start URL's site, honors the job's URL filters and writes one markdown
// plus one metadata artifact per content page.
package crawl

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/extract"
	"github.com/xkilldash9x/harvest-cli/internal/fetch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stats summarizes a finished crawl.
type Stats struct {
	Processed int `json:"processed"`
	Saved     int `json:"saved"`
	Failed    int `json:"failed"`
}

// Crawler walks pages breadth first.
type Crawler struct {
	cfg      config.FetchConfig
	job      *Job
	fetcher  *fetch.Fetcher
	schema   *extract.Schema
	patterns *Patterns
	limiter  *rate.Limiter

	outputDir string
	base      string
	logger    *zap.Logger

	visited map[string]struct{}
	failed  map[string]struct{}
}

// New wires a crawler for one job.
func New(cfg config.FetchConfig, job *Job, fetcher *fetch.Fetcher, outputDir string, logger *zap.Logger) (*Crawler, error) {
	patterns, err := job.CompilePatterns()
	if err != nil {
		return nil, err
	}
	schema, err := job.Schema()
	if err != nil {
		return nil, err
	}

	base := job.BaseURL
	if base == "" {
		start, err := url.Parse(job.StartURL)
		if err != nil {
			return nil, fmt.Errorf("crawl job: invalid start_url: %w", err)
		}
		base = start.Scheme + "://" + start.Host
	}

	delay := cfg.Delay
	if delay <= 0 {
		delay = 1
	}

	return &Crawler{
		cfg:       cfg,
		job:       job,
		fetcher:   fetcher,
		schema:    schema,
		patterns:  patterns,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		outputDir: outputDir,
		base:      base,
		logger:    logger.Named("crawler").With(zap.String("job", job.Name)),
		visited:   make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}, nil
}

// Run crawls from the job's start URL until the frontier empties or the URL
// budget runs out. Individual page failures are recorded and skipped; only
// a cancelled context aborts the crawl.
func (c *Crawler) Run(ctx context.Context) (*Stats, error) {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	stats := &Stats{}
	queue := []string{c.job.StartURL}
	c.logger.Info("Starting crawl.",
		zap.String("start_url", c.job.StartURL),
		zap.Int("max_urls", c.cfg.MaxURLs))

	for len(queue) > 0 && stats.Processed < c.cfg.MaxURLs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pageURL := queue[0]
		queue = queue[1:]
		if _, seen := c.visited[pageURL]; seen {
			continue
		}
		c.visited[pageURL] = struct{}{}

		if err := c.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		discovered, err := c.processPage(ctx, pageURL, stats)
		stats.Processed++
		if err != nil {
			c.failed[pageURL] = struct{}{}
			stats.Failed++
			c.logger.Warn("Failed to process page.", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		for _, next := range discovered {
			if _, seen := c.visited[next]; seen {
				continue
			}
			if c.shouldFollow(next) {
				queue = append(queue, next)
			}
		}
	}

	c.logger.Info("Crawl finished.",
		zap.Int("processed", stats.Processed),
		zap.Int("saved", stats.Saved),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func (c *Crawler) processPage(ctx context.Context, pageURL string, stats *Stats) ([]string, error) {
	body, err := c.fetcher.Page(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(pageURL, c.logger)
	discovered := extractor.ExtractURLs(body, c.schema)

	if c.isContentPage(pageURL) {
		record := extractor.ExtractContent(body, c.schema)
		record["url"] = pageURL
		if err := c.saveRecord(pageURL, record); err != nil {
			c.logger.Warn("Failed to save page artifacts.", zap.String("url", pageURL), zap.Error(err))
		} else {
			stats.Saved++
		}
	}
	return discovered, nil
}

func (c *Crawler) shouldFollow(candidate string) bool {
	if !strings.HasPrefix(candidate, c.base) {
		return false
	}
	if len(c.patterns.Include) > 0 && !anyMatch(c.patterns.Include, candidate) {
		return false
	}
	if anyMatch(c.patterns.Exclude, candidate) {
		return false
	}
	return true
}

// isContentPage decides whether a URL's document is worth persisting. With
// content patterns configured the patterns decide; otherwise anything that
// is not a section index (trailing slash) or the start page counts.
func (c *Crawler) isContentPage(pageURL string) bool {
	if len(c.patterns.Content) > 0 {
		return anyMatch(c.patterns.Content, pageURL)
	}
	if pageURL == c.job.StartURL {
		return false
	}
	return !strings.HasSuffix(pageURL, "/")
}

func (c *Crawler) saveRecord(pageURL string, record map[string]any) error {
	name := artifactBase(record, pageURL)

	var markdown strings.Builder
	title, _ := record["title"].(string)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&markdown, "# %s\n\n", title)
	if date, _ := record["date"].(string); date != "" {
		fmt.Fprintf(&markdown, "Date: %s\n\n", date)
	}
	fmt.Fprintf(&markdown, "URL: %s\n\n", pageURL)
	if body, _ := record["content_markdown"].(string); body != "" {
		markdown.WriteString(body)
		markdown.WriteString("\n")
	}

	markdownPath := filepath.Join(c.outputDir, name+".md")
	if err := os.WriteFile(markdownPath, []byte(markdown.String()), 0o644); err != nil {
		return fmt.Errorf("writing markdown artifact: %w", err)
	}

	// The metadata sidecar carries everything except the bulky markup.
	meta := make(map[string]any, len(record))
	for key, value := range record {
		if key == "html_content" || key == "content_markdown" || key == "raw_content" {
			continue
		}
		meta[key] = value
	}
	meta["markdown_file"] = filepath.Base(markdownPath)

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.outputDir, name+".json"), encoded, 0o644); err != nil {
		return fmt.Errorf("writing metadata artifact: %w", err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// artifactBase derives a stable file name from the record title, falling
// back to a URL digest when the page has no usable title.
func artifactBase(record map[string]any, pageURL string) string {
	title, _ := record["title"].(string)
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = unsafeFileChars.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "_-")
	if len(slug) > 50 {
		slug = slug[:50]
	}
	if slug == "" || slug == "untitled" {
		digest := md5.Sum([]byte(pageURL))
		slug = fmt.Sprintf("page_%x", digest[:4])
	}
	return slug
}

func anyMatch(patterns []*regexp.Regexp, value string) bool {
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// File: internal/crawl/job.go
package crawl

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/harvest-cli/internal/extract"
)

// Job is a parsed crawl job file: where to start, which URLs to follow,
// which pages carry content and how to extract it.
type Job struct {
	Name             string         `yaml:"name"`
	StartURL         string         `yaml:"start_url"`
	BaseURL          string         `yaml:"base_url"`
	URLPatterns      PatternConfig  `yaml:"url_patterns"`
	ExtractionSchema map[string]any `yaml:"extraction_schema"`
}

// PatternConfig holds the raw regular expressions of a job file.
type PatternConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Content []string `yaml:"content"`
}

// Patterns are the compiled URL filters of a job.
type Patterns struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
	Content []*regexp.Regexp
}

// LoadJob reads and validates a crawl job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading crawl job: %w", err)
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing crawl job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the job for required fields.
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("crawl job: name is required")
	}
	if j.StartURL == "" {
		return fmt.Errorf("crawl job: start_url is required")
	}
	return nil
}

// CompilePatterns compiles the job's URL filters.
func (j *Job) CompilePatterns() (*Patterns, error) {
	patterns := &Patterns{}
	var err error
	if patterns.Include, err = compileAll(j.URLPatterns.Include); err != nil {
		return nil, fmt.Errorf("crawl job include patterns: %w", err)
	}
	if patterns.Exclude, err = compileAll(j.URLPatterns.Exclude); err != nil {
		return nil, fmt.Errorf("crawl job exclude patterns: %w", err)
	}
	if patterns.Content, err = compileAll(j.URLPatterns.Content); err != nil {
		return nil, fmt.Errorf("crawl job content patterns: %w", err)
	}
	return patterns, nil
}

// Schema normalizes the job's extraction schema. A job without one crawls
// with generic heuristics.
func (j *Job) Schema() (*extract.Schema, error) {
	if len(j.ExtractionSchema) == 0 {
		return &extract.Schema{Format: extract.FormatGeneric}, nil
	}
	return extract.Normalize(j.ExtractionSchema)
}

func compileAll(values []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, value := range values {
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", value, err)
		}
		out = append(out, re)
	}
	return out, nil
}

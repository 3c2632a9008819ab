package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflowYAML = `
workflow_name: News Scrape
start:
  url: https://example.com/news
config:
  headless: false
  output_directory: artifacts
flow:
  - step: collect
    actions:
      - action: extract
        target: links
        element:
          sample: ".card-1 a"
          generalize: true
        output: articles
    pagination:
      next_button: ".next"
      max_pages: 3
    next: read
  - step: read
    for_each: "${articles}"
    actions:
      - action: visit
        url: "${current_item.href}"
      - action: extract
        target: content
        elements:
          - name: title
            sample: "h1"
        output: article
      - action: save
        data: "${article}"
        format: markdown
    next: finish
`

func TestParseValidWorkflow(t *testing.T) {
	def, err := Parse([]byte(validWorkflowYAML))
	require.NoError(t, err)

	assert.Equal(t, "News Scrape", def.Name)
	assert.Equal(t, "https://example.com/news", def.Start.URL)
	require.NotNil(t, def.Config)
	require.NotNil(t, def.Config.Headless)
	assert.False(t, *def.Config.Headless)
	assert.Equal(t, "artifacts", def.Config.OutputDirectory)

	require.Len(t, def.Flow, 2)

	collect := def.Flow[0]
	require.Len(t, collect.Actions, 1)
	assert.Equal(t, ActionExtract, collect.Actions[0].Kind)
	require.NotNil(t, collect.Actions[0].Extract)
	assert.Equal(t, ".card-1 a", collect.Actions[0].Extract.Element.Sample)
	assert.True(t, collect.Actions[0].Extract.Element.ShouldGeneralize(false))
	require.NotNil(t, collect.Pagination)
	assert.Equal(t, ".next", collect.Pagination.NextButton)
	assert.Equal(t, 3, collect.Pagination.MaxPages)

	read := def.Flow[1]
	assert.Equal(t, "${articles}", read.ForEach)
	assert.Equal(t, ActionVisit, read.Actions[0].Kind)
	assert.Equal(t, ActionSave, read.Actions[2].Kind)
	assert.Equal(t, StepFinish, read.Next)
}

func TestParseLegacyPaginationFieldName(t *testing.T) {
	def, err := Parse([]byte(`
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: only
    actions:
      - action: wait
        timeout: 100
    pagination:
      next_button_selector: "a.more"
      max_pages: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "a.more", def.Flow[0].Pagination.NextButton)
}

func TestParseElementSpecString(t *testing.T) {
	def, err := Parse([]byte(`
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: only
    actions:
      - action: extract
        target: links
        element: ".list a"
`))
	require.NoError(t, err)
	assert.Equal(t, ".list a", def.Flow[0].Actions[0].Extract.Element.Sample)
}

func TestParseUnknownActionKind(t *testing.T) {
	_, err := Parse([]byte(`
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: only
    actions:
      - action: teleport
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestValidateRejectsStructuralProblems(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", `
start: {url: "https://example.com"}
flow:
  - step: s
    actions: [{action: wait}]
`},
		{"missing start url", `
workflow_name: w
flow:
  - step: s
    actions: [{action: wait}]
`},
		{"empty flow", `
workflow_name: w
start: {url: "https://example.com"}
flow: []
`},
		{"duplicate step names", `
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: s
    actions: [{action: wait}]
  - step: s
    actions: [{action: wait}]
`},
		{"reserved finish step", `
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: finish
    actions: [{action: wait}]
`},
		{"step without actions", `
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: s
`},
		{"pagination without next button", `
workflow_name: w
start: {url: "https://example.com"}
flow:
  - step: s
    actions: [{action: wait}]
    pagination: {max_pages: 2}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected a ConfigError, got %v", err)
		})
	}
}

func TestWaitActionDuration(t *testing.T) {
	w := &WaitAction{}
	assert.Equal(t, "1s", w.Duration(nil).String())
	assert.Equal(t, "250ms", w.Duration(250).String())
	assert.Equal(t, "2s", w.Duration("2000").String())
}

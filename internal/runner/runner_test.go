package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/workflow"
)

// stubDriver satisfies the driver contract without a browser.
type stubDriver struct {
	navigated []string
	closed    bool
}

func (s *stubDriver) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return nil
}
func (s *stubDriver) CurrentURL(context.Context) (string, error) { return "https://example.com", nil }
func (s *stubDriver) Content(context.Context) (string, error)    { return "<html></html>", nil }
func (s *stubDriver) QuerySelectorAll(context.Context, string) ([]workflow.Element, error) {
	return nil, nil
}
func (s *stubDriver) Evaluate(context.Context, string, any) error { return nil }
func (s *stubDriver) WaitForNetworkIdle(context.Context) error    { return nil }
func (s *stubDriver) Close(context.Context) error {
	s.closed = true
	return nil
}

func writeWorkflowFile(t *testing.T, dir, name, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const trivialWorkflow = `
workflow_name: Trivial
start: {url: "https://example.com"}
flow:
  - step: only
    actions:
      - action: wait
        timeout: 1
    next: finish
`

func newStubbedRunner(t *testing.T, drivers *[]*stubDriver) *Runner {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Output.Directory = t.TempDir()

	r := New(cfg, zap.NewNop())
	r.newSession = func(context.Context, *config.Config, *zap.Logger) (workflow.Driver, error) {
		driver := &stubDriver{}
		*drivers = append(*drivers, driver)
		return driver, nil
	}
	return r
}

func TestRunAllExecutesSequentially(t *testing.T) {
	dir := t.TempDir()
	first := writeWorkflowFile(t, dir, "first.yaml", trivialWorkflow)
	second := writeWorkflowFile(t, dir, "second.yaml", trivialWorkflow)

	var drivers []*stubDriver
	r := newStubbedRunner(t, &drivers)

	reports := r.RunAll(context.Background(), []string{first, second})

	require.Len(t, reports, 2)
	assert.True(t, reports[0].Result.Success)
	assert.True(t, reports[1].Result.Success)

	// Each run gets an isolated session, and every session is closed.
	require.Len(t, drivers, 2)
	for _, driver := range drivers {
		assert.True(t, driver.closed)
	}
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkflowFile(t, dir, "wf.yaml", trivialWorkflow)

	var drivers []*stubDriver
	r := newStubbedRunner(t, &drivers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := r.RunAll(ctx, []string{path, path})
	assert.Empty(t, reports)
	assert.Empty(t, drivers)
}

func TestRunAllReportsLoadFailure(t *testing.T) {
	var drivers []*stubDriver
	r := newStubbedRunner(t, &drivers)

	reports := r.RunAll(context.Background(), []string{filepath.Join(t.TempDir(), "missing.yaml")})

	require.Len(t, reports, 1)
	assert.False(t, reports[0].Result.Success)
	assert.NotEmpty(t, reports[0].Result.Errors)
	assert.Empty(t, drivers, "no session is opened for an unloadable workflow")
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.NewDefaultConfig()
	r := New(cfg, zap.NewNop())

	headless := false
	def := &workflow.Definition{
		Config: &workflow.SessionOptions{
			Headless:        &headless,
			UserAgent:       "custom-agent",
			TimeoutMS:       5000,
			OutputDirectory: "elsewhere",
		},
	}

	runCfg := r.applyOverrides(def)

	assert.False(t, runCfg.Browser.Headless)
	assert.Equal(t, "custom-agent", runCfg.Browser.UserAgent)
	assert.Equal(t, 5*time.Second, runCfg.Network.NavigationTimeout)
	assert.Equal(t, "elsewhere", runCfg.Output.Directory)

	// The base configuration must stay untouched.
	assert.True(t, cfg.Browser.Headless)
}

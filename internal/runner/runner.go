// File: internal/runner/runner.go
// Sequential execution of workflow files. Every workflow gets its own
// browser session and engine; one workflow's crash or dirty state can never
// leak into the next.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/browser"
	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/workflow"
)

// RunReport pairs a workflow file with its run result.
type RunReport struct {
	Path   string           `json:"path"`
	Result *workflow.Result `json:"result"`
}

// sessionFactory builds a driver for one run. Tests swap it out.
type sessionFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (workflow.Driver, error)

// Runner executes workflow files one after another.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	newSession sessionFactory
}

// New creates a Runner backed by real browser sessions.
func New(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("runner"),
		newSession: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (workflow.Driver, error) {
			return browser.NewSession(ctx, cfg, logger)
		},
	}
}

// RunAll executes the given workflow files in order. Cancellation is honored
// between runs; a cancelled context stops the batch without starting the
// next workflow.
func (r *Runner) RunAll(ctx context.Context, paths []string) []RunReport {
	reports := make([]RunReport, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("Batch cancelled; skipping remaining workflows.",
				zap.Int("remaining", len(paths)-len(reports)))
			break
		}
		reports = append(reports, RunReport{Path: path, Result: r.runOne(ctx, path)})
	}
	return reports
}

func (r *Runner) runOne(ctx context.Context, path string) *workflow.Result {
	logger := r.logger.With(zap.String("workflow_file", path))

	def, err := workflow.Load(path)
	if err != nil {
		logger.Error("Failed to load workflow.", zap.Error(err))
		return &workflow.Result{Errors: []string{err.Error()}}
	}

	runCfg := r.applyOverrides(def)
	session, err := r.newSession(ctx, runCfg, logger)
	if err != nil {
		logger.Error("Failed to open browser session.", zap.Error(err))
		return &workflow.Result{
			TotalSteps: len(def.Flow),
			Errors:     []string{fmt.Sprintf("opening browser session: %v", err)},
		}
	}
	defer func() {
		if err := session.Close(ctx); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	engine := workflow.NewEngine(def, session, workflow.Options{
		Logger:    logger,
		OutputDir: runCfg.Output.Directory,
	})
	return engine.Run(ctx)
}

// applyOverrides layers the workflow file's config block over the base
// configuration for the duration of one run.
func (r *Runner) applyOverrides(def *workflow.Definition) *config.Config {
	runCfg := *r.cfg
	if def.Config == nil {
		return &runCfg
	}

	if def.Config.Headless != nil {
		runCfg.Browser.Headless = *def.Config.Headless
	}
	if def.Config.UserAgent != "" {
		runCfg.Browser.UserAgent = def.Config.UserAgent
	}
	if def.Config.TimeoutMS > 0 {
		timeout := time.Duration(def.Config.TimeoutMS) * time.Millisecond
		runCfg.Network.NavigationTimeout = timeout
		runCfg.Network.ActionTimeout = timeout
	}
	if def.Config.OutputDirectory != "" {
		runCfg.Output.Directory = def.Config.OutputDirectory
	}
	return &runCfg
}

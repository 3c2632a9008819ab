// File: internal/workflow/engine.go
// The workflow execution engine: a state machine over named steps, each
// running a list of typed actions against a page driver.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/extract"
	"github.com/xkilldash9x/harvest-cli/internal/generalize"
)

// Result summarizes one workflow run.
type Result struct {
	Success        bool          `json:"success"`
	StepsCompleted int           `json:"steps_completed"`
	TotalSteps     int           `json:"total_steps"`
	DataExtracted  int           `json:"data_extracted"`
	Errors         []string      `json:"errors"`
	OutputFile     string        `json:"output_file,omitempty"`
	ExecutionTime  time.Duration `json:"execution_time"`
}

// Options tune a single engine instance.
type Options struct {
	Logger    *zap.Logger
	OutputDir string
}

// Engine executes one workflow definition against one driver. Engines are
// single-use: state accumulates across steps of one run.
type Engine struct {
	def          *Definition
	driver       Driver
	logger       *zap.Logger
	generalizer  *generalize.Generalizer
	baseline     LinkExtractor
	generalizing LinkExtractor
	outputDir    string
	runID        string

	state     State
	collected []any
	errs      []string
}

// NewEngine wires an engine for a validated definition.
func NewEngine(def *Definition, driver Driver, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "output"
	}

	runID := uuid.New().String()
	logger = logger.Named("engine").With(
		zap.String("workflow", def.Name),
		zap.String("run_id", runID),
	)

	generalizer := generalize.New(logger)
	return &Engine{
		def:          def,
		driver:       driver,
		logger:       logger,
		generalizer:  generalizer,
		baseline:     NewBaselineLinks(logger),
		generalizing: NewGeneralizedLinks(generalizer, logger),
		outputDir:    outputDir,
		runID:        runID,
		state:        State{},
	}
}

// Run drives the flow from its first step until a finish transition, an
// error, or a broken transition. It always returns a Result; run-level
// problems land in Result.Errors rather than an error return.
func (e *Engine) Run(ctx context.Context) *Result {
	started := time.Now()
	result := &Result{TotalSteps: len(e.def.Flow)}

	e.logger.Info("Starting workflow run.", zap.String("start_url", e.def.Start.URL))

	if err := e.driver.Navigate(ctx, e.def.Start.URL); err != nil {
		e.recordError(fmt.Sprintf("failed to open start url %s: %v", e.def.Start.URL, err))
	} else {
		current := e.def.Flow[0].Name
		for current != "" && current != StepFinish {
			step := e.def.StepByName(current)
			if step == nil {
				e.recordError(fmt.Sprintf("%v: transition to undefined step %q", ErrStepNotFound, current))
				break
			}

			next, err := e.executeStep(ctx, step)
			result.StepsCompleted++
			if err != nil {
				e.recordError(fmt.Sprintf("step %q failed: %v", step.Name, err))
				break
			}
			current = next
		}
	}

	if len(e.collected) > 0 {
		path, err := writeRunOutput(e.outputDir, e.def.Name, e.collected)
		if err != nil {
			// Disk trouble must not void the run; the data stays in memory
			// and the failure is visible in the logs.
			e.logger.Error("Failed to write run output file.", zap.Error(err))
		} else {
			result.OutputFile = path
		}
	}

	result.DataExtracted = len(e.collected)
	result.Errors = append([]string{}, e.errs...)
	result.Success = result.StepsCompleted > 0 && len(e.errs) == 0
	result.ExecutionTime = time.Since(started)

	e.logger.Info("Workflow run finished.",
		zap.Bool("success", result.Success),
		zap.Int("steps_completed", result.StepsCompleted),
		zap.Int("data_extracted", result.DataExtracted),
		zap.Duration("execution_time", result.ExecutionTime))
	return result
}

func (e *Engine) recordError(message string) {
	e.logger.Error(message)
	e.errs = append(e.errs, message)
}

// executeStep runs one step and reports the transition target. Any panic in
// action handling is converted to a step error so one bad page cannot take
// the process down.
func (e *Engine) executeStep(ctx context.Context, step *Step) (next string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected fault: %v", r)
		}
	}()

	logger := e.logger.With(zap.String("step", step.Name))
	next = step.Next
	if next == "" {
		next = StepFinish
	}

	if step.Condition != "" && !Truthy(Resolve(step.Condition, e.state)) {
		logger.Info("Condition not met; skipping step.", zap.String("condition", step.Condition))
		return next, nil
	}

	if step.ForEach != "" {
		items, err := e.iterationItems(step.ForEach)
		if err != nil {
			return next, err
		}
		logger.Info("Iterating step actions.", zap.Int("items", len(items)))
		for i, item := range items {
			e.state["current_item"] = item
			e.state["current_index"] = i
			if err := e.runActions(ctx, logger, step.Actions); err != nil {
				return next, fmt.Errorf("item %d: %w", i, err)
			}
		}
		return next, nil
	}

	if err := e.runActions(ctx, logger, step.Actions); err != nil {
		return next, err
	}

	if step.Pagination != nil {
		e.paginate(ctx, logger, step)
	}
	return next, nil
}

// paginate repeats the step's actions over subsequent result pages. The
// page limit counts the already-processed first page; a missing next-page
// control or a failing action ends pagination early without failing the
// step, keeping everything harvested so far.
func (e *Engine) paginate(ctx context.Context, logger *zap.Logger, step *Step) {
	for page := 2; page <= step.Pagination.MaxPages; page++ {
		selector := ResolveString(step.Pagination.NextButton, e.state)
		elements, err := e.driver.QuerySelectorAll(ctx, selector)
		if err != nil || len(elements) == 0 {
			logger.Info("No next-page control; stopping pagination.",
				zap.Int("page", page), zap.String("selector", selector))
			return
		}
		if err := elements[0].Click(ctx); err != nil {
			logger.Warn("Failed to click next-page control.", zap.Int("page", page), zap.Error(err))
			return
		}
		if err := e.driver.WaitForNetworkIdle(ctx); err != nil {
			logger.Debug("Network did not settle after pagination click.", zap.Error(err))
		}

		if err := e.runActions(ctx, logger, step.Actions); err != nil {
			logger.Warn("Action failed on paginated page; keeping earlier results.",
				zap.Int("page", page), zap.Error(err))
			return
		}
		logger.Info("Processed paginated page.", zap.Int("page", page))
	}
}

func (e *Engine) iterationItems(expr string) ([]any, error) {
	resolved := Resolve(expr, e.state)
	items, ok := resolved.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIteration, expr)
	}
	return items, nil
}

func (e *Engine) runActions(ctx context.Context, logger *zap.Logger, actions []Action) error {
	for i := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.executeAction(ctx, logger, &actions[i]); err != nil {
			return fmt.Errorf("%s action: %w", actions[i].Kind, err)
		}
	}
	return nil
}

func (e *Engine) executeAction(ctx context.Context, logger *zap.Logger, action *Action) error {
	switch action.Kind {
	case ActionVisit:
		return e.executeVisit(ctx, logger, action.Visit)
	case ActionExtract:
		return e.executeExtract(ctx, logger, action.Extract)
	case ActionSave:
		return e.executeSave(logger, action.Save)
	case ActionClick:
		return e.executeClick(ctx, logger, action.Click)
	case ActionWait:
		return e.executeWait(ctx, action.Wait)
	case ActionForEach:
		return e.executeForEach(ctx, logger, action.ForEach)
	default:
		return &ConfigError{Field: "action", Reason: fmt.Sprintf("unknown action kind %q", action.Kind)}
	}
}

func (e *Engine) executeVisit(ctx context.Context, logger *zap.Logger, a *VisitAction) error {
	target := ResolveString(a.URL, e.state)
	if target == "" || strings.Contains(target, "${") {
		// Inside an iteration the natural target is the current item's own
		// link.
		target = e.currentItemHref()
	}
	if target == "" {
		return ErrNoNavigableURL
	}

	logger.Info("Visiting page.", zap.String("url", target))
	if err := e.driver.Navigate(ctx, target); err != nil {
		return fmt.Errorf("visiting %s: %w", target, err)
	}
	return nil
}

func (e *Engine) currentItemHref() string {
	item, ok := e.state["current_item"].(map[string]any)
	if !ok {
		return ""
	}
	href, _ := item["href"].(string)
	return href
}

func (e *Engine) executeExtract(ctx context.Context, logger *zap.Logger, a *ExtractAction) error {
	output := a.Output
	if output == "" {
		output = "extracted_data"
	}

	switch a.Target {
	case "links", "":
		links, err := e.extractLinks(ctx, a.Element)
		if err != nil {
			return err
		}
		items := make([]any, len(links))
		for i, link := range links {
			record := map[string]any{"href": link.Href, "text": link.Text}
			if link.Date != "" {
				record["date"] = link.Date
			}
			items[i] = record
		}
		e.state[output] = items
		logger.Info("Harvested links.", zap.Int("count", len(items)), zap.String("output", output))
		return nil

	case "content":
		record, err := e.extractContent(ctx, logger, a)
		if err != nil {
			return err
		}
		e.state[output] = record
		logger.Info("Extracted content record.", zap.String("output", output))
		return nil

	default:
		return fmt.Errorf("unknown extract target %q", a.Target)
	}
}

func (e *Engine) extractLinks(ctx context.Context, spec *ElementSpec) ([]extract.Link, error) {
	if spec == nil {
		return nil, nil
	}
	resolved := &ElementSpec{
		Sample:     ResolveString(spec.Sample, e.state),
		Generalize: spec.Generalize,
	}

	strategy := e.baseline
	if spec.ShouldGeneralize(true) {
		strategy = e.generalizing
	}
	return strategy.ExtractLinks(ctx, e.driver, resolved)
}

func (e *Engine) extractContent(ctx context.Context, logger *zap.Logger, a *ExtractAction) (map[string]any, error) {
	record := map[string]any{}

	if a.Elements != nil {
		for _, element := range a.Elements.List {
			record[element.Name] = e.extractSingle(ctx, logger, element.Sample, element.Generalize)
		}
		for name, field := range a.Elements.Fields {
			record[name] = e.extractTyped(ctx, logger, field)
		}
	}

	if currentURL, err := e.driver.CurrentURL(ctx); err == nil && currentURL != "" {
		record["url"] = currentURL
	}
	record["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return record, nil
}

// extractSingle returns the text of the first match for a sample selector,
// optionally widened by the generalizer first. Missing elements yield an
// empty value, not an error: one absent field must not void the record.
func (e *Engine) extractSingle(ctx context.Context, logger *zap.Logger, sample string, widen bool) string {
	selector := ResolveString(sample, e.state)
	if selector == "" {
		return ""
	}

	if widen {
		if htmlContent, err := e.driver.Content(ctx); err == nil {
			if result := e.generalizer.Generalize(htmlContent, selector); result.Success {
				selector = result.Generalized
			}
		}
	}

	elements, err := e.driver.QuerySelectorAll(ctx, selector)
	if err != nil || len(elements) == 0 {
		logger.Warn("Content selector matched nothing.", zap.String("selector", selector))
		return ""
	}
	text, err := elements[0].Text(ctx)
	if err != nil {
		logger.Warn("Failed to read element text.", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func (e *Engine) extractTyped(ctx context.Context, logger *zap.Logger, field FieldSpec) string {
	selector := ResolveString(field.SelectorValue(), e.state)
	if selector == "" {
		return ""
	}
	elements, err := e.driver.QuerySelectorAll(ctx, selector)
	if err != nil || len(elements) == 0 {
		logger.Warn("Content selector matched nothing.", zap.String("selector", selector))
		return ""
	}
	first := elements[0]

	var value string
	switch field.Type {
	case "attribute":
		attribute := field.Attribute
		if attribute == "" {
			attribute = "href"
		}
		value, _, err = first.Attribute(ctx, attribute)
	case "html":
		value, err = first.HTML(ctx, false)
	case "outerhtml":
		value, err = first.HTML(ctx, true)
	default:
		value, err = first.Text(ctx)
	}
	if err != nil {
		logger.Warn("Failed to read element value.", zap.String("selector", selector), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(value)
}

func (e *Engine) executeSave(logger *zap.Logger, a *SaveAction) error {
	data := Resolve(a.Data, e.state)
	if data == nil {
		return fmt.Errorf("save data resolved to nothing")
	}
	if s, ok := data.(string); ok && s == "" {
		return fmt.Errorf("save data resolved to an empty string")
	}

	if items, ok := data.([]any); ok {
		e.collected = append(e.collected, items...)
	} else {
		e.collected = append(e.collected, data)
	}

	if a.Format != "" {
		filename := ResolveString(a.Filename, e.state)
		path, err := writeSaveFile(e.outputDir, filename, a.Format, data)
		if err != nil {
			// Persisting is best effort; the data already lives in the run
			// accumulator.
			logger.Error("Failed to persist save data.", zap.Error(err))
		} else {
			logger.Info("Saved data.", zap.String("path", path))
		}
	}
	return nil
}

func (e *Engine) executeClick(ctx context.Context, logger *zap.Logger, a *ClickAction) error {
	selector := ResolveString(a.Element, e.state)
	elements, err := e.driver.QuerySelectorAll(ctx, selector)
	if err != nil {
		return fmt.Errorf("querying %q: %w", selector, err)
	}
	if len(elements) == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}
	if err := elements[0].Click(ctx); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	if err := e.driver.WaitForNetworkIdle(ctx); err != nil {
		logger.Debug("Network did not settle after click.", zap.Error(err))
	}
	return nil
}

func (e *Engine) executeWait(ctx context.Context, a *WaitAction) error {
	duration := a.Duration(Resolve(a.Timeout, e.state))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}

func (e *Engine) executeForEach(ctx context.Context, logger *zap.Logger, a *ForEachAction) error {
	items, err := e.iterationItems(a.Items)
	if err != nil {
		return err
	}
	logger.Info("Iterating nested actions.", zap.Int("items", len(items)))
	for i, item := range items {
		e.state["current_item"] = item
		e.state["current_index"] = i
		if err := e.runActions(ctx, logger, a.Actions); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

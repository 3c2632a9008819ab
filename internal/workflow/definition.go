// File: internal/workflow/definition.go
// The workflow definition model. Actions decode into a closed set of typed
// variants at load time; an unrecognized action kind is a configuration
// error, never a silent no-op at run time.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StepFinish is the reserved transition target that ends a run. It must
// never be defined as a step.
const StepFinish = "finish"

// ActionKind enumerates the recognized action variants.
type ActionKind string

const (
	ActionVisit   ActionKind = "visit"
	ActionExtract ActionKind = "extract"
	ActionSave    ActionKind = "save"
	ActionClick   ActionKind = "click"
	ActionWait    ActionKind = "wait"
	ActionForEach ActionKind = "for_each"
)

// Definition is a parsed workflow file.
type Definition struct {
	Name   string          `yaml:"workflow_name"`
	Start  Start           `yaml:"start"`
	Flow   []Step          `yaml:"flow"`
	Config *SessionOptions `yaml:"config"`
}

// Start anchors the run to its entry URL.
type Start struct {
	URL string `yaml:"url"`
}

// SessionOptions are per-workflow overrides of the session configuration.
type SessionOptions struct {
	Headless        *bool  `yaml:"headless"`
	UserAgent       string `yaml:"user_agent"`
	TimeoutMS       int    `yaml:"timeout"`
	OutputDirectory string `yaml:"output_directory"`
}

// Step is one named state of the flow.
type Step struct {
	Name       string      `yaml:"step"`
	Condition  string      `yaml:"condition"`
	ForEach    string      `yaml:"for_each"`
	Actions    []Action    `yaml:"actions"`
	Pagination *Pagination `yaml:"pagination"`
	Next       string      `yaml:"next"`
}

// Pagination repeats a step's actions over numbered result pages.
type Pagination struct {
	NextButton string
	MaxPages   int
}

// UnmarshalYAML accepts both the current and the historical field name for
// the next-page control.
func (p *Pagination) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		NextButton       string `yaml:"next_button"`
		NextButtonLegacy string `yaml:"next_button_selector"`
		MaxPages         int    `yaml:"max_pages"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.NextButton = raw.NextButton
	if p.NextButton == "" {
		p.NextButton = raw.NextButtonLegacy
	}
	p.MaxPages = raw.MaxPages
	return nil
}

// Action is the closed sum of action variants. Exactly one branch is
// non-nil, indicated by Kind.
type Action struct {
	Kind    ActionKind
	Visit   *VisitAction
	Extract *ExtractAction
	Save    *SaveAction
	Click   *ClickAction
	Wait    *WaitAction
	ForEach *ForEachAction
}

// UnmarshalYAML decodes the variant selected by the "action" key.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var probe struct {
		Kind string `yaml:"action"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}

	a.Kind = ActionKind(probe.Kind)
	switch a.Kind {
	case ActionVisit:
		a.Visit = &VisitAction{}
		return node.Decode(a.Visit)
	case ActionExtract:
		a.Extract = &ExtractAction{}
		return node.Decode(a.Extract)
	case ActionSave:
		a.Save = &SaveAction{}
		return node.Decode(a.Save)
	case ActionClick:
		a.Click = &ClickAction{}
		return node.Decode(a.Click)
	case ActionWait:
		a.Wait = &WaitAction{}
		return node.Decode(a.Wait)
	case ActionForEach:
		a.ForEach = &ForEachAction{}
		return node.Decode(a.ForEach)
	case "":
		return &ConfigError{Field: "action", Reason: "action kind is missing"}
	default:
		return &ConfigError{Field: "action", Reason: fmt.Sprintf("unknown action kind %q", probe.Kind)}
	}
}

// VisitAction navigates to a URL. When the URL resolves empty, the engine
// falls back to the href of the current iteration item.
type VisitAction struct {
	URL string `yaml:"url"`
}

// ExtractAction pulls links or content off the current page into a state
// variable.
type ExtractAction struct {
	Target   string        `yaml:"target"`
	Element  *ElementSpec  `yaml:"element"`
	Elements *ElementsSpec `yaml:"elements"`
	Output   string        `yaml:"output"`
}

// ElementSpec names a sample selector and whether it should be generalized
// to the whole family of similar elements.
type ElementSpec struct {
	Sample     string
	Generalize *bool
}

// UnmarshalYAML accepts either a bare selector string or the
// {sample, generalize} mapping.
func (s *ElementSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Sample)
	}
	var raw struct {
		Sample     string `yaml:"sample"`
		Selector   string `yaml:"selector"`
		Generalize *bool  `yaml:"generalize"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.Sample = raw.Sample
	if s.Sample == "" {
		s.Sample = raw.Selector
	}
	s.Generalize = raw.Generalize
	return nil
}

// ShouldGeneralize applies the default when the flag is absent: link
// harvesting generalizes, everything else does not.
func (s *ElementSpec) ShouldGeneralize(dflt bool) bool {
	if s == nil || s.Generalize == nil {
		return dflt
	}
	return *s.Generalize
}

// ElementsSpec describes a content extraction: either a list of named
// sample selectors or a mapping of field rules.
type ElementsSpec struct {
	List   []NamedElement
	Fields map[string]FieldSpec
}

// NamedElement is one entry of the list form.
type NamedElement struct {
	Name       string `yaml:"name"`
	Sample     string `yaml:"sample"`
	Generalize bool   `yaml:"generalize"`
}

// FieldSpec is one entry of the mapping form.
type FieldSpec struct {
	Selector  string `yaml:"selector"`
	Sample    string `yaml:"sample"`
	Type      string `yaml:"type"`
	Attribute string `yaml:"attribute"`
}

// SelectorValue returns whichever selector field the author used.
func (f FieldSpec) SelectorValue() string {
	if f.Selector != "" {
		return f.Selector
	}
	return f.Sample
}

// UnmarshalYAML branches on the node shape.
func (s *ElementsSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&s.List)
	case yaml.MappingNode:
		return node.Decode(&s.Fields)
	default:
		return &ConfigError{Field: "elements", Reason: "must be a list or a mapping"}
	}
}

// SaveAction persists resolved data to the output directory.
type SaveAction struct {
	Data     any    `yaml:"data"`
	Format   string `yaml:"format"`
	Filename string `yaml:"filename"`
}

// ClickAction clicks the first element matching a resolved selector.
type ClickAction struct {
	Element string `yaml:"element"`
}

// WaitAction suspends the run. Timeout is resolvable and in milliseconds.
type WaitAction struct {
	Timeout any `yaml:"timeout"`
}

// Duration converts a resolved timeout value to a duration, defaulting to
// one second.
func (w *WaitAction) Duration(resolved any) time.Duration {
	ms := toInt(resolved)
	if ms <= 0 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// ForEachAction runs nested actions once per item of a resolved list.
type ForEachAction struct {
	Items   string   `yaml:"items"`
	Actions []Action `yaml:"actions"`
}

// Load reads and validates a workflow file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates workflow YAML.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate enforces the structural invariants of a definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &ConfigError{Field: "workflow_name", Reason: "is required"}
	}
	if d.Start.URL == "" {
		return &ConfigError{Field: "start.url", Reason: "is required"}
	}
	if len(d.Flow) == 0 {
		return &ConfigError{Field: "flow", Reason: "must define at least one step"}
	}

	seen := make(map[string]struct{}, len(d.Flow))
	for i, step := range d.Flow {
		if step.Name == "" {
			return &ConfigError{Field: fmt.Sprintf("flow[%d].step", i), Reason: "step name is required"}
		}
		if step.Name == StepFinish {
			return &ConfigError{Field: fmt.Sprintf("flow[%d].step", i), Reason: fmt.Sprintf("%q is reserved", StepFinish)}
		}
		if _, dup := seen[step.Name]; dup {
			return &ConfigError{Field: fmt.Sprintf("flow[%d].step", i), Reason: fmt.Sprintf("duplicate step name %q", step.Name)}
		}
		seen[step.Name] = struct{}{}

		if len(step.Actions) == 0 {
			return &ConfigError{Field: fmt.Sprintf("flow[%d].actions", i), Reason: "must define at least one action"}
		}
		if step.Pagination != nil {
			if step.Pagination.NextButton == "" {
				return &ConfigError{Field: fmt.Sprintf("flow[%d].pagination.next_button", i), Reason: "is required"}
			}
			if step.Pagination.MaxPages < 1 {
				return &ConfigError{Field: fmt.Sprintf("flow[%d].pagination.max_pages", i), Reason: "must be at least 1"}
			}
		}
	}
	return nil
}

// StepByName returns the named step, or nil.
func (d *Definition) StepByName(name string) *Step {
	for i := range d.Flow {
		if d.Flow[i].Name == name {
			return &d.Flow[i]
		}
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var out int
		if _, err := fmt.Sscanf(n, "%d", &out); err == nil {
			return out
		}
	}
	return 0
}

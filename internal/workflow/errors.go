// File: internal/workflow/errors.go
package workflow

import (
	"errors"
	"fmt"
)

// ConfigError marks a structural problem in a workflow definition. It is
// raised at load time, before any browser work starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("workflow config: %s: %s", e.Field, e.Reason)
}

var (
	// ErrSelectorNotFound means a resolved selector matched no elements on
	// the live page.
	ErrSelectorNotFound = errors.New("selector matched no elements")

	// ErrStepNotFound means a transition named a step the flow never
	// defines.
	ErrStepNotFound = errors.New("step not found")

	// ErrEmptyIteration means a for_each expression resolved to something
	// that is not a non-empty list.
	ErrEmptyIteration = errors.New("iteration source is not a non-empty list")

	// ErrNoNavigableURL means a visit action could not determine a target,
	// neither from its own url nor from the current iteration item.
	ErrNoNavigableURL = errors.New("no navigable url")
)

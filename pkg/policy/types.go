package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that make a model unfit to run.
	SeverityError Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Policy is a Rego module whose deny set lists violations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was read from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one finding of a policy.
type Violation struct {
	Policy   string   `json:"policy"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// Variable or Query names the model element at fault, if any.
	Variable string `json:"variable,omitempty"`
	Query    string `json:"query,omitempty"`
}

// Report is the result of evaluating every enabled policy against a model.
type Report struct {
	Model string `json:"model"`

	// Allowed is false when any violation has error severity.
	Allowed bool `json:"allowed"`

	// Violations are sorted by severity, policy and message.
	Violations []Violation `json:"violations,omitempty"`

	// Failures lists policies that could not be evaluated.
	Failures []string `json:"failures,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// Input is the document policies see as input.
type Input struct {
	Name           string                   `json:"name"`
	Representation string                   `json:"representation"`
	Limits         LimitsInput              `json:"limits"`
	Variables      map[string]VariableInput `json:"variables"`
	Queries        []QueryInput             `json:"queries"`
}

// LimitsInput mirrors the model limits. Zero values mean unbounded.
type LimitsInput struct {
	MaxPaths       int64  `json:"max_paths"`
	Timeout        string `json:"timeout"`
	MaxSampleTries int    `json:"max_sample_tries"`
}

// VariableInput describes one variable and its place in the model graph.
type VariableInput struct {
	Form         string   `json:"form"`
	Outcomes     int      `json:"outcomes"`
	Level        int      `json:"level"`
	Dependencies []string `json:"dependencies"`

	// Queried reports whether some query depends on the variable.
	Queried bool `json:"queried"`
}

// QueryInput describes one query.
type QueryInput struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Trials int    `json:"trials"`

	// WorstCasePaths bounds the enumeration paths of the query target.
	WorstCasePaths float64 `json:"worst_case_paths"`
}

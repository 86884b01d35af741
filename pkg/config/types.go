package config

import (
	"strconv"
	"strings"
	"time"
)

// ModelSpec is a model file: a set of named random variables and the
// queries to run against them.
type ModelSpec struct {
	// Name identifies the model in logs, metrics and the result history.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Representation selects the probability arithmetic
	// (rational, float, decimal). Defaults to rational.
	Representation string `json:"representation,omitempty" yaml:"representation,omitempty" validate:"omitempty,oneof=rational float decimal"`

	// Limits bounds every query of the model.
	Limits LimitsSpec `json:"limits,omitempty" yaml:"limits,omitempty"`

	// Variables maps variable names to their definitions.
	Variables map[string]VariableSpec `json:"variables" yaml:"variables" validate:"required,min=1,dive"`

	// Queries lists the queries run by "statues eval".
	Queries []QuerySpec `json:"queries,omitempty" yaml:"queries,omitempty" validate:"dive"`
}

// LimitsSpec bounds query resources.
type LimitsSpec struct {
	// MaxPaths caps enumeration paths. Zero means unbounded.
	MaxPaths int64 `json:"max_paths,omitempty" yaml:"max_paths,omitempty" validate:"gte=0"`

	// Timeout caps the duration of one query, e.g. "30s".
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxSampleTries caps consecutive rejected trials of a random draw.
	MaxSampleTries int `json:"max_sample_tries,omitempty" yaml:"max_sample_tries,omitempty" validate:"gte=0"`
}

// VariableSpec defines one variable. Exactly one definition form must be
// set: Atomic, Entries, Uniform, Certain, Bernoulli, Expr, Switch, Given,
// Joint or Times.
type VariableSpec struct {
	// Atomic maps values to weights. Keys are read as Type.
	Atomic map[string]any `json:"atomic,omitempty" yaml:"atomic,omitempty"`

	// Entries is an ordered table of values and weights.
	Entries []EntrySpec `json:"entries,omitempty" yaml:"entries,omitempty" validate:"omitempty,dive"`

	// Uniform lists equally likely values.
	Uniform []any `json:"uniform,omitempty" yaml:"uniform,omitempty"`

	// Certain is a value with probability one.
	Certain any `json:"certain,omitempty" yaml:"certain,omitempty"`

	// Bernoulli is the probability of true of a boolean variable.
	Bernoulli any `json:"bernoulli,omitempty" yaml:"bernoulli,omitempty"`

	// Expr is a Starlark expression over Params, applied to Args.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`

	// Args names the variables an Expr or a Times fold is applied to.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Params names the parameters of Expr. Defaults to x, y, z, u, v, w.
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`

	// Switch names the discriminator variable.
	Switch string `json:"switch,omitempty" yaml:"switch,omitempty"`

	// Cases maps discriminator values, in their printed form, to variables.
	Cases map[string]string `json:"cases,omitempty" yaml:"cases,omitempty"`

	// Default is the variable used when no case matches.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`

	// Given names the subject of a conditioned variable.
	Given string `json:"given,omitempty" yaml:"given,omitempty"`

	// Evidence names boolean variables that must all be true.
	Evidence []string `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// Joint names the variables combined into a tuple.
	Joint []string `json:"joint,omitempty" yaml:"joint,omitempty"`

	// Times folds N independent copies of Args[0] with the Expr operator.
	Times int `json:"times,omitempty" yaml:"times,omitempty" validate:"gte=0"`

	// Type is the type of Atomic keys (string, int, float, bool).
	Type string `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=string int float bool"`

	// Description is free text shown by "statues graph".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EntrySpec is one row of an Entries table.
type EntrySpec struct {
	Value  any `json:"value" yaml:"value"`
	Weight any `json:"weight" yaml:"weight" validate:"required"`
}

// Query kinds.
const (
	KindDistribution = "distribution"
	KindProbability  = "probability"
	KindWeights      = "weights"
	KindCases        = "cases"
	KindSample       = "sample"
	KindEstimate     = "estimate"
	KindTrue         = "true"
	KindFeasible     = "feasible"
)

// QuerySpec is one query of a model file.
type QuerySpec struct {
	// Name identifies the query in output and history.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Target is the queried variable.
	Target string `json:"target" yaml:"target" validate:"required"`

	// Kind selects the query.
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=distribution probability weights cases sample estimate true feasible"`

	// Value turns a probability query on a non-boolean target into the
	// event target == value.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Given names extra boolean evidence for this query only.
	Given []string `json:"given,omitempty" yaml:"given,omitempty"`

	// Trials is the number of random draws of sample and estimate queries.
	Trials int `json:"trials,omitempty" yaml:"trials,omitempty" validate:"gte=0"`

	// Seed makes sample and estimate queries reproducible.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Duration is a time.Duration read from "30s" style strings.
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ValidationError represents a problem found in a model file.
type ValidationError struct {
	// File is the source file where the error occurred.
	File string `json:"file,omitempty"`

	// Line is the line number where the error occurred.
	Line int `json:"line,omitempty"`

	// Column is the column number where the error occurred.
	Column int `json:"column,omitempty"`

	// Path is the field path of the error (e.g., "variables.sum.args").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	loc := e.File
	if e.Line > 0 {
		loc += ":" + strconv.Itoa(e.Line)
		if e.Column > 0 {
			loc += ":" + strconv.Itoa(e.Column)
		}
	}
	if e.Path != "" {
		if loc != "" {
			loc += ": "
		}
		loc += e.Path
	}
	if loc == "" {
		return e.Message
	}
	return loc + ": " + e.Message
}

// LoadError collects the validation errors of a model file.
type LoadError struct {
	Errors []ValidationError
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return "invalid model: " + strings.Join(msgs, "; ")
}

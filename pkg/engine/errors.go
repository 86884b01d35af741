package engine

import (
	"errors"
	"fmt"
)

// ErrorClass tells whether an error was raised while building the graph or
// while evaluating a query. Construction errors leave the model unchanged;
// evaluation errors leave it valid for other queries.
type ErrorClass string

const (
	// ErrorClassConstruction marks errors raised by node constructors.
	ErrorClassConstruction ErrorClass = "construction"

	// ErrorClassEvaluation marks errors raised by queries.
	ErrorClassEvaluation ErrorClass = "evaluation"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code identifies the error kind for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Node is the label of the node involved, if any.
	Node string `json:"node,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Node != "" {
		msg = fmt.Sprintf("%s (node=%s)", msg, e.Node)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// Two engine errors match when class and code match.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// Classification returns the class and code reported in metrics and traces.
func (e *EngineError) Classification() (class, code string) {
	return string(e.Class), e.Code
}

// WithNode adds node context to an error.
func (e *EngineError) WithNode(label string) *EngineError {
	e.Node = label
	return e
}

// WithCode overrides the error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error codes.
const (
	ErrCodeInvalidDistribution = "INVALID_DISTRIBUTION"
	ErrCodeCyclicDependency    = "CYCLIC_DEPENDENCY"
	ErrCodeImpossibleCondition = "IMPOSSIBLE_CONDITION"
	ErrCodeTypeMismatch        = "TYPE_MISMATCH"
	ErrCodeComputationTooLarge = "COMPUTATION_TOO_LARGE"
	ErrCodeMissingCase         = "MISSING_CASE"
	ErrCodeArithmetic          = "ARITHMETIC"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// Sentinel errors for errors.Is.
var (
	ErrInvalidDistribution = &EngineError{Class: ErrorClassConstruction, Code: ErrCodeInvalidDistribution}
	ErrCyclicDependency    = &EngineError{Class: ErrorClassConstruction, Code: ErrCodeCyclicDependency}
	ErrImpossibleCondition = &EngineError{Class: ErrorClassEvaluation, Code: ErrCodeImpossibleCondition}
	ErrTypeMismatch        = &EngineError{Class: ErrorClassEvaluation, Code: ErrCodeTypeMismatch}
	ErrComputationTooLarge = &EngineError{Class: ErrorClassEvaluation, Code: ErrCodeComputationTooLarge}
)

// NewConstructionError creates a new construction error.
func NewConstructionError(code, message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConstruction,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewEvaluationError creates a new evaluation error.
func NewEvaluationError(code, message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassEvaluation,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsConstruction returns true if the error was raised while building nodes.
func IsConstruction(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConstruction
	}
	return false
}

// IsEvaluation returns true if the error was raised by a query.
func IsEvaluation(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassEvaluation
	}
	return false
}

// Code returns the engine error code carried by err, or "" if there is none.
func Code(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

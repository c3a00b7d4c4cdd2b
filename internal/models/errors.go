package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned when an operation needs at least one row
	ErrEmptyTable = errors.New("observation table is empty")
	// ErrColumnNotFound is returned when a named column does not exist
	ErrColumnNotFound = errors.New("column not found")
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Message)
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// Analysis stages a per-variable failure can originate from
const (
	StageClassify = "classify"
	StageValidate = "validate"
	StageImpute   = "impute"
)

// AnalysisError describes a failure confined to a single variable
type AnalysisError struct {
	Variable string `json:"variable"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	cause    error
}

// NewAnalysisError wraps cause as a failure of the given variable and stage
func NewAnalysisError(variable, stage string, cause error) *AnalysisError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &AnalysisError{Variable: variable, Stage: stage, Message: msg, cause: cause}
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Stage, e.Variable, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.cause
}

// Note renders the error in the "error: <message>" form used in result rows
func (e *AnalysisError) Note() string {
	return "error: " + e.Message
}

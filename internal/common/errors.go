package common

import (
	"fmt"
	"time"
)

// ErrorType classifies where an error originated.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeCollector     ErrorType = "collector"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeAnalysis      ErrorType = "analysis"
	ErrorTypeOptimization  ErrorType = "optimization"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeExport        ErrorType = "export"
)

// AppError is an application error with classification and context.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	wrapped   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.wrapped
}

// NewError creates a new application error.
func NewError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithError wraps an underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.wrapped = err
	return e
}

// WithContext attaches a context value.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

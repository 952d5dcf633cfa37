package model

import (
	"fmt"
	"strings"
)

// TransportErrorKind classifies a transport failure
type TransportErrorKind string

const (
	TransportHTTP       TransportErrorKind = "http"
	TransportTimeout    TransportErrorKind = "timeout"
	TransportConnection TransportErrorKind = "connection"
)

// TransportError represents network, timeout and HTTP status failures
type TransportError struct {
	Kind      TransportErrorKind
	Operation string
	Status    int
	Message   string
	Cause     error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s [%s]", e.Kind, e.Operation)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new transport error
func NewTransportError(kind TransportErrorKind, operation string, status int, message string, cause error) *TransportError {
	return &TransportError{
		Kind:      kind,
		Operation: operation,
		Status:    status,
		Message:   message,
		Cause:     cause,
	}
}

// BusinessError is a well formed response carrying a non-success code
type BusinessError struct {
	Operation string
	Code      string
	Message   string
	Friendly  string
}

func (e *BusinessError) Error() string {
	if e.Friendly != "" {
		return fmt.Sprintf("[%s] code %s: %s (%s)", e.Operation, e.Code, e.Message, e.Friendly)
	}
	return fmt.Sprintf("[%s] code %s: %s", e.Operation, e.Code, e.Message)
}

// NewBusinessError creates a new business error
func NewBusinessError(operation, code, message, friendly string) *BusinessError {
	return &BusinessError{
		Operation: operation,
		Code:      code,
		Message:   message,
		Friendly:  friendly,
	}
}

// ParseError represents a response shape mismatch
type ParseError struct {
	Operation string
	Field     string
	Message   string
	Cause     error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Operation, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Operation, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(operation, field, message string, cause error) *ParseError {
	return &ParseError{
		Operation: operation,
		Field:     field,
		Message:   message,
		Cause:     cause,
	}
}

// CredentialsUnavailableError means no usable credential exists for a tenant
type CredentialsUnavailableError struct {
	TenantID    string
	Environment string
	Remediation string
}

func (e *CredentialsUnavailableError) Error() string {
	return fmt.Sprintf("credentials unavailable for tenant %s (%s): %s", e.TenantID, e.Environment, e.Remediation)
}

// NewCredentialsUnavailableError creates a new credentials error
func NewCredentialsUnavailableError(tenantID, environment, remediation string) *CredentialsUnavailableError {
	return &CredentialsUnavailableError{
		TenantID:    tenantID,
		Environment: environment,
		Remediation: remediation,
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// MappingError collects every violation found while mapping a document
type MappingError struct {
	Violations []*ValidationError
}

func (e *MappingError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Error())
	}
	return fmt.Sprintf("mapping failed with %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Add records a violation
func (e *MappingError) Add(field string, value interface{}, rule, message string) {
	e.Violations = append(e.Violations, NewValidationError(field, value, rule, message))
}

// Fields returns the violated field names in order.
func (e *MappingError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

// ErrOrNil returns e when it holds violations.
func (e *MappingError) ErrOrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// RetryExhaustedError is the last error of a retried call annotated with the
// number of attempts made
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// NewRetryExhaustedError creates a new retry exhausted error
func NewRetryExhaustedError(attempts int, err error) *RetryExhaustedError {
	return &RetryExhaustedError{Attempts: attempts, Err: err}
}

package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers. The UI keys its messages off these.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeCapacityExceeded       = "CAPACITY_EXCEEDED"
	CodeNoEligibleAgent        = "NO_ELIGIBLE_AGENT"
	CodeSLARuleMissing         = "SLA_RULE_MISSING"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeRateLimited            = "RATE_LIMITED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the engine treats the error as a structured
// outcome rather than a failed request.
func (e *DomainError) Recoverable() bool {
	switch e.Code {
	case CodeInvalidTransition, CodeCapacityExceeded, CodeNoEligibleAgent,
		CodeSLARuleMissing, CodeConcurrentModification:
		return true
	}
	return false
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInvalidTransition(from, event string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot %s a ticket in status %s", event, from),
		http.StatusConflict,
		map[string]any{"status": from, "event": event})
}

func NewCapacityExceeded(agentID string, current, max int) error {
	return NewDomainError(CodeCapacityExceeded, "agent is at capacity", http.StatusConflict,
		map[string]any{"agent_id": agentID, "current_ticket_count": current, "max_capacity": max})
}

func NewNoEligibleAgent(ticketID string) error {
	return NewDomainError(CodeNoEligibleAgent, "no agent available", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewSLARuleMissing(level int) error {
	return NewDomainError(CodeSLARuleMissing, "no sla rule for urgency level", http.StatusUnprocessableEntity,
		map[string]any{"urgency_level": level})
}

func NewConcurrentModification(resource string, details map[string]any) error {
	return NewDomainError(CodeConcurrentModification,
		fmt.Sprintf("%s was modified concurrently; retry", resource),
		http.StatusConflict, details)
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// Package apperrors defines the orchestrator's error taxonomy (spec §7).
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for dispatch/logging purposes.
type Code string

const (
	CodeTransport      Code = "TRANSPORT"
	CodePersistence    Code = "PERSISTENCE"
	CodeLLMProtocol    Code = "LLM_PROTOCOL"
	CodeHighRisk       Code = "HIGH_RISK_LOW_CONFIDENCE"
	CodeStaleTimer     Code = "STALE_TIMER"
	CodeMalformed      Code = "MALFORMED_PAYLOAD"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeAlreadyExists  Code = "ALREADY_EXISTS"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// AppError wraps a taxonomy code around an underlying cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// TransientTransportError signals the webhook gateway should let the
// provider retry delivery.
func TransientTransportError(message string, cause error) *AppError {
	return Wrap(CodeTransport, message, cause)
}

// MalformedPayloadError signals the payload must be dropped without retry.
func MalformedPayloadError(message string, cause error) *AppError {
	return Wrap(CodeMalformed, message, cause)
}

// LLMProtocolError signals an unparseable or schema-invalid pipeline response.
func LLMProtocolError(message string, cause error) *AppError {
	return Wrap(CodeLLMProtocol, message, cause)
}

// StaleTimer signals a ScheduledAction discarded by the staleness gate.
func StaleTimer(message string) *AppError {
	return New(CodeStaleTimer, message)
}

func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool { return Is(err, CodeNotFound) }
func IsStale(err error) bool    { return Is(err, CodeStaleTimer) }

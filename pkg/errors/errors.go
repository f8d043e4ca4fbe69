// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors carries typed launcher failures. Install, uninstall and
// enable report *LauncherError; fan-out paths log faults and never return
// them.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure for hosts, logs and metrics.
type ErrorCode string

const (
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeExtensionFault   ErrorCode = "EXTENSION_FAULT"
	CodeStorage          ErrorCode = "STORAGE_ERROR"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeLLMError         ErrorCode = "LLM_ERROR"
	// CodeRateLimit marks provider quota and rate-limit rejections.
	CodeRateLimit ErrorCode = "RATE_LIMITED"
	CodeTimeout   ErrorCode = "TIMEOUT"
	// CodeContextLost means the caller cancelled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"
)

var statusByCode = map[ErrorCode]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodePermissionDenied: http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeTimeout:          http.StatusRequestTimeout,
	CodeAlreadyExists:    http.StatusConflict,
	CodeRateLimit:        http.StatusTooManyRequests,
}

// LauncherError is a coded error with optional cause and context. Match it
// with errors.As.
type LauncherError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
	// StatusCode is the HTTP-style status for Code.
	StatusCode int
}

// New builds an error. cause may be nil.
func New(code ErrorCode, msg string, cause error) *LauncherError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &LauncherError{Code: code, Message: msg, Err: cause, Context: map[string]any{}, StatusCode: status}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *LauncherError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

func (e *LauncherError) Error() string {
	return "[" + string(e.Code) + "] " + e.Reason()
}

func (e *LauncherError) Unwrap() error { return e.Err }

// Reason is the message and cause without the code prefix. Hosts show it
// to the user as is.
func (e *LauncherError) Reason() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// WithContext records a key for logs and JSON output.
func (e *LauncherError) WithContext(key string, value any) *LauncherError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// WithRecoverable marks whether retrying may succeed.
func (e *LauncherError) WithRecoverable(recoverable bool) *LauncherError {
	e.Recoverable = recoverable
	return e
}

func (e *LauncherError) MarshalJSON() ([]byte, error) {
	type wire struct {
		Code        ErrorCode      `json:"code"`
		Message     string         `json:"message"`
		Cause       string         `json:"error,omitempty"`
		Recoverable bool           `json:"recoverable"`
		Status      int            `json:"status_code"`
		Context     map[string]any `json:"context,omitempty"`
	}
	w := wire{Code: e.Code, Message: e.Message, Recoverable: e.Recoverable, Status: e.StatusCode, Context: e.Context}
	if e.Err != nil {
		w.Cause = e.Err.Error()
	}
	return json.Marshal(w)
}

// AsLauncherError returns the first *LauncherError in err's chain. Foreign
// errors come back wrapped as CodeInternal; nil stays nil.
func AsLauncherError(err error) *LauncherError {
	if err == nil {
		return nil
	}
	if le, ok := find(err); ok {
		return le
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first *LauncherError in err's chain,
// CodeInternal for foreign errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if le, ok := find(err); ok {
		return le.Code
	}
	return CodeInternal
}

// IsCode reports whether CodeOf(err) is code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func find(err error) (*LauncherError, bool) {
	var le *LauncherError
	ok := stderrors.As(err, &le)
	return le, ok
}

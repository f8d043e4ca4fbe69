// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/launcher/pkg/errors"
)

// CLIError is a LauncherError plus a next step for the operator.
type CLIError struct {
	*errors.LauncherError
	Hint string
}

func (e *CLIError) Error() string {
	if e.Hint == "" {
		return e.LauncherError.Error()
	}
	return e.LauncherError.Error() + "\n  Hint: " + e.Hint
}

func (e *CLIError) Unwrap() error { return e.LauncherError }

const listHint = "run 'launcher list' or 'launcher available' to see known extensions"

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(resource, name string) *CLIError {
	le := errors.Newf(errors.CodeNotFound, "%s '%s' not found", resource, name).
		WithContext("resource", resource).
		WithContext("name", name)
	return &CLIError{LauncherError: le, Hint: listHint}
}

// NewInvalidArgumentError reports bad command-line input.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	le := errors.New(errors.CodeInvalidInput, "invalid argument: "+reason, nil).WithContext("argument", arg)
	return &CLIError{LauncherError: le, Hint: "run 'launcher help' for usage information"}
}

// NewConfigError reports a config load failure for path, which may be empty.
func NewConfigError(err error, path string) *CLIError {
	le := errors.New(errors.CodeInvalidInput, "configuration error", err).WithContext("config_path", path)
	hint := "check your configuration file syntax"
	if path != "" {
		hint = "check " + path + " for syntax errors"
	}
	return &CLIError{LauncherError: le, Hint: hint}
}

var codeHints = map[errors.ErrorCode]string{
	errors.CodePermissionDenied: "review governance.policies, governance.allowlist or set governance.approval",
	errors.CodeAlreadyExists:    "uninstall the extension first",
	errors.CodeNotFound:         listHint,
	errors.CodeRateLimit:        "wait for the provider quota to reset or switch llm.provider",
	errors.CodeLLMError:         "check llm.provider, llm.model and llm.api_key",
	errors.CodeTimeout:          "raise llm.timeout_seconds or check the backend",
	errors.CodeStorage:          "check extensions.dir and extensions.database_path",
}

var codeLabels = map[errors.ErrorCode]string{
	errors.CodeInternal:         "Internal Error",
	errors.CodeInvalidInput:     "Invalid Input",
	errors.CodeNotFound:         "Not Found",
	errors.CodeAlreadyExists:    "Already Exists",
	errors.CodeExtensionFault:   "Extension Fault",
	errors.CodeStorage:          "Storage Error",
	errors.CodePermissionDenied: "Permission Denied",
	errors.CodeLLMError:         "LLM Error",
	errors.CodeRateLimit:        "Rate Limited",
	errors.CodeTimeout:          "Timeout",
	errors.CodeContextLost:      "Cancelled",
}

// FormatErrorCode names a code for humans. Unknown codes print as is.
func FormatErrorCode(code errors.ErrorCode) string {
	if label, ok := codeLabels[code]; ok {
		return label
	}
	return string(code)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// report prints err to w as text or JSON and returns the exit code.
// Uncoded errors print with code UNKNOWN.
func report(w io.Writer, err error, asJSON bool) int {
	body := errorBody{Code: "UNKNOWN", Message: err.Error()}
	var cliErr *CLIError
	var le *errors.LauncherError
	switch {
	case stderrors.As(err, &cliErr):
		body = errorBody{Code: string(cliErr.Code), Message: cliErr.Reason(), Hint: cliErr.Hint}
	case stderrors.As(err, &le):
		body = errorBody{Code: string(le.Code), Message: le.Reason(), Hint: codeHints[le.Code]}
	}

	if asJSON {
		_ = printJSON(w, map[string]errorBody{"error": body})
		return 1
	}
	if body.Code == "UNKNOWN" {
		fmt.Fprintf(w, "Error: %s\n", body.Message)
		return 1
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(errors.ErrorCode(body.Code)), body.Message)
	if body.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", body.Hint)
	}
	return 1
}

// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
)

// ErrorCategory classifies command errors so main can pick an exit
// code without parsing message text.
type ErrorCategory string

const (
	// CategoryValidation is bad input: flags, arguments, config.
	CategoryValidation ErrorCategory = "validation"

	// CategoryUnauthorized is a rejected or missing credential.
	CategoryUnauthorized ErrorCategory = "unauthorized"

	// CategoryTransient is a failure worth retrying later: the portal
	// is unreachable, a timeout.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal is everything else.
	CategoryInternal ErrorCategory = "internal"
)

// Error is a categorized command error. Hint, when set, is printed on
// its own line after the message.
type Error struct {
	Category ErrorCategory
	Err      error
	Hint     string
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps the category to the process exit status.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryUnauthorized:
		return 3
	case CategoryTransient:
		return 4
	default:
		return 1
	}
}

// WithHint attaches a suggestion for the user and returns e.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

func Validation(format string, args ...any) *Error {
	return &Error{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Category: CategoryUnauthorized, Err: fmt.Errorf(format, args...)}
}

func Transient(format string, args ...any) *Error {
	return &Error{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

func Internal(format string, args ...any) *Error {
	return &Error{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// Report writes err (and its hint) to w and returns the exit code.
// Uncategorized errors exit 1.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "error: %v\n", err)
	var categorized *Error
	if errors.As(err, &categorized) {
		if categorized.Hint != "" {
			fmt.Fprintf(w, "hint: %s\n", categorized.Hint)
		}
		return categorized.ExitCode()
	}
	return 1
}

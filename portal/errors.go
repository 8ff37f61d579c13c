// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the portal API. Extract it with
// errors.As:
//
//	var apiErr *portal.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	Method     string `json:"-"`
	Path       string `json:"-"`
	StatusCode int    `json:"-"`

	// Message is the server's "message" (or "error") field, or the raw
	// body when the response was not JSON.
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("portal: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

// IsUnauthorized reports whether the server rejected the credential.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

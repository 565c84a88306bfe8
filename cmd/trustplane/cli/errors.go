// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// UsageError reports bad command-line input: a missing required flag,
// the wrong number of arguments, an unparseable value. main exits
// with status 2 for these.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error, allowing errors.Is and
// errors.As to walk the full chain.
func (e *UsageError) Unwrap() error { return e.Err }

// Validation creates a usage error from a format string.
func Validation(format string, args ...any) *UsageError {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

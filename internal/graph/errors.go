// Shopgraph - Graph-Based Product Recommendations
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the store taxonomy. Callers classify with the Is*
// helpers rather than matching error strings.
var (
	// ErrNotFound indicates the requested seed id does not exist in the
	// graph. Surfaced to the caller, never retried.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates a transient connectivity or query failure.
	// Callers treat it as retryable and may degrade to an empty result.
	ErrUnavailable = errors.New("store unavailable")
)

// NotFoundError wraps ErrNotFound with the missing label and id.
func NotFoundError(label, id string) error {
	return fmt.Errorf("%s %q: %w", label, id, ErrNotFound)
}

// UnavailableError wraps a driver failure as ErrUnavailable, preserving the
// cause for logging.
func UnavailableError(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, cause)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err is, or wraps, ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsTimeout reports whether err is a context deadline or cancellation.
// Timeout errors pass through the store untranslated so callers can degrade
// to partial results.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apperr carries the board service's error taxonomy.
//
// Every error body the API produces is {"error": <kind>, "message":
// <human text>}; only the kind is meant for program matching. The kinds
// split caller faults (validation, conflict, not-found) from upstream
// faults (not-found, forbidden, transient) and infrastructure faults so
// the UI can tell "fix your input" from "try again later".
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-matchable error classification.
type Kind string

const (
	// KindValidation: caller-supplied input fails a stated contract.
	KindValidation Kind = "validation_error"

	// KindConflict: duplicate workflow or dashboard name.
	KindConflict Kind = "conflict"

	// KindNotFound: a referenced dashboard or workflow does not exist.
	KindNotFound Kind = "not_found"

	// KindUpstreamNotFound: the CI provider cannot see the workflow or
	// the app is not installed for the owner.
	KindUpstreamNotFound Kind = "upstream_not_found"

	// KindUpstreamForbidden: the CI provider refused the credentials.
	KindUpstreamForbidden Kind = "upstream_forbidden"

	// KindUpstreamUnavailable: the CI provider or secret provider failed
	// transiently.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindInfrastructure: blob store unreachable or document unparseable.
	KindInfrastructure Kind = "infrastructure_error"

	// KindInvariant: a condition that must always hold was violated,
	// e.g. no active dashboard resolvable. Indicates a corrupted
	// document or a bug; logged loudly, never retried.
	KindInvariant Kind = "invariant_violation"
)

// Error is the single error type the service surfaces across package
// boundaries. Err, when non-nil, preserves the underlying cause for
// errors.Is/As and logging; Message is what the API returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that keeps cause for unwrapping. The message is
// what callers see; cause is for logs.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Invariant(format string, args ...any) *Error {
	return New(KindInvariant, format, args...)
}

func Infrastructure(cause error, format string, args ...any) *Error {
	return Wrap(KindInfrastructure, cause, format, args...)
}

// KindOf extracts the Kind from any error. Errors that are not *Error
// (or do not wrap one) are classified as infrastructure faults, the
// conservative bucket.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// MessageOf extracts the human message from any error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound, KindUpstreamNotFound:
		return http.StatusNotFound
	case KindUpstreamForbidden:
		return http.StatusForbidden
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gerror defines the discriminated error returned by the governance
// pipeline. Callers switch on Kind instead of matching message text.
package gerror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a governance outcome.
type Kind string

const (
	// KindParse means the statement could not be tokenized or classified.
	KindParse Kind = "PARSE_ERROR"
	// KindPermissionDenied means the RBAC gate rejected the subject.
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	// KindPolicyViolation means one or more enforced policies blocked the statement.
	KindPolicyViolation Kind = "POLICY_VIOLATION"
	// KindMissingParameter means a named placeholder had no bound value.
	KindMissingParameter Kind = "MISSING_PARAMETER"
	// KindInvalidPolicy is returned at policy create/update time only.
	KindInvalidPolicy Kind = "INVALID_POLICY_DEFINITION"
	// KindInjectionDetected means the injection detector matched the statement or a parameter.
	KindInjectionDetected Kind = "INJECTION_DETECTED"
	// KindQuotaExceeded means the subject's execution quota is used up.
	KindQuotaExceeded Kind = "QUOTA_EXCEEDED"
	// KindInternal is a failure inside the pipeline or one of its collaborators.
	KindInternal Kind = "INTERNAL"
)

// Error is the single error type produced by governance components.
type Error struct {
	Kind    Kind
	Message string
	// Details carries the individual reasons, e.g. every policy violation.
	Details []string
	Cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PolicyViolation builds the rejection returned when policies block a statement.
func PolicyViolation(violations []string) *Error {
	return &Error{
		Kind:    KindPolicyViolation,
		Message: "statement blocked by security policy",
		Details: append([]string(nil), violations...),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindParse}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Expected reports whether the error is a normal rejection rather than a failure.
func (e *Error) Expected() bool {
	return e.Kind != KindInternal
}

// HTTPStatus maps the kind to a response status for the admin API.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindParse, KindMissingParameter, KindInvalidPolicy:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindPolicyViolation, KindInjectionDetected:
		return http.StatusUnprocessableEntity
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// As returns err as an *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Expected reports whether err is a governance rejection. Errors that are
// not an *Error count as failures.
func Expected(err error) bool {
	e, ok := As(err)
	return ok && e.Expected()
}

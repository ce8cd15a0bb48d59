// Package service holds the voting engine: address resolution, the
// eligibility gate, the verification strategies and the ballot engine.
// Every rejection is returned as an *Error carrying a machine-readable
// code; handlers translate the error kind into an HTTP status.
package service

import (
	"errors"
	"net/http"
)

// Kind classifies a rejection.
type Kind int

const (
	KindClientInput Kind = iota + 1
	KindNotFound
	KindIneligible
	KindVerification
	KindUnauthenticated
	KindInternal
)

// Error is a typed rejection returned by the engine.
type Error struct {
	Kind    Kind
	Code    string // stable reason code, e.g. "already_voted"
	Message string // user-facing message
	Err     error  // underlying cause, never shown to the client
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// Is matches errors with the same reason code, so a sentinel still matches
// after it has been wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIneligible:
		return http.StatusForbidden
	case KindVerification:
		if e.Code == ErrNoFaceDetected.Code {
			return http.StatusUnprocessableEntity
		}
		return http.StatusGone
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newError(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Message: msg}
}

var (
	ErrMissingSociety     = newError(KindClientInput, "missing_society", "Society name is required")
	ErrMissingFields      = newError(KindClientInput, "missing_fields", "Society and proof are required")
	ErrIncompleteAddress  = newError(KindClientInput, "incomplete_address", "Incomplete household details")
	ErrInvalidImage       = newError(KindClientInput, "invalid_image", "Image data could not be decoded")
	ErrNoSelection        = newError(KindClientInput, "no_selection", "No contestants selected")
	ErrTooManySelections  = newError(KindClientInput, "too_many_selections", "Too many contestants selected")
	ErrDuplicateSelection = newError(KindClientInput, "duplicate_selection", "A contestant was selected more than once")
	ErrUnknownCandidate   = newError(KindClientInput, "unknown_candidate", "Invalid contestant selection")

	ErrSocietyNotFound   = newError(KindNotFound, "society_not_found", "Society not found")
	ErrNoHouseholds      = newError(KindNotFound, "no_households", "No households found for this society")
	ErrScheduleNotSet    = newError(KindNotFound, "schedule_not_set", "Voting schedule not set")
	ErrNoFaceRecord      = newError(KindNotFound, "no_face_record", "No face record found for this household")
	ErrHouseholdNotFound = newError(KindNotFound, "household_not_found", "Household not found")
	ErrSettingsNotFound  = newError(KindNotFound, "settings_not_found", "Society settings not found")
	ErrNoCandidates      = newError(KindNotFound, "no_candidates", "No contestants on the ballot")

	ErrBlocked         = newError(KindIneligible, "blocked", "Blocked by admin")
	ErrVoteNotAllowed  = newError(KindIneligible, "vote_not_allowed", "Voting not allowed for this household")
	ErrVotingClosed    = newError(KindIneligible, "voting_closed", "Voting is closed")
	ErrAlreadyVoted    = newError(KindIneligible, "already_voted", "Already voted")
	ErrCapacityReached = newError(KindIneligible, "capacity_reached", "Maximum number of votes reached")

	ErrInvalidCredentials = newError(KindVerification, "invalid_credentials", "Invalid credentials")
	ErrNoFaceDetected     = newError(KindVerification, "no_face_detected", "No face detected")

	ErrSessionRequired = newError(KindUnauthenticated, "session_expired", "Session expired, please verify again")
)

// Internal wraps an infrastructure failure.  The cause is kept for logging
// only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "server_error", Message: "Server error", Err: err}
}

// AsError returns err as an *Error, wrapping anything untyped as Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

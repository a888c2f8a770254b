package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a lost compare-and-swap race: the offer changed state
// between read and write and is no longer available (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoCandidates is returned when a dispatch is requested with no ranked transporters.
var ErrNoCandidates = errors.New("no transport available")

// ErrNotActive is returned when an action targets a tier record that is not the active one.
var ErrNotActive = errors.New("offer is not active")

// ErrAlreadyResponded is returned when an action targets an already resolved record.
var ErrAlreadyResponded = errors.New("offer already responded")

// ErrForbidden is returned when the caller does not own the offer.
var ErrForbidden = errors.New("forbidden")

// ErrDispatchInProgress is returned when an order already has a non-terminal dispatch group.
var ErrDispatchInProgress = errors.New("dispatch in progress")

// ErrRankingUnavailable is returned when candidates must be ranked but no ranking provider is configured.
var ErrRankingUnavailable = errors.New("ranking provider is not configured")

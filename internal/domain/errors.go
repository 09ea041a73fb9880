package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request payload fails semantic
	// validation, e.g. a blank chat message.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCoordinates is returned when a latitude/longitude pair is
	// malformed or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrUpstreamUnavailable is returned when a weather or AI provider
	// errors out or times out.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrMalformedResponse is returned when the AI output cannot be parsed
	// into the expected assessment shape. Callers must surface it rather
	// than substitute a fabricated score.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrStorageUnavailable is returned on persistence backend failures.
	ErrStorageUnavailable = errors.New("storage backend unavailable")

	// ErrNotFound is returned when no record or session exists for an id.
	ErrNotFound = errors.New("not found")
)

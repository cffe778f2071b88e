package server

import "errors"

var (
	// ErrInvalidPayload indicates artifact bytes that could not be decoded
	// from their encoded form.
	ErrInvalidPayload = errors.New("invalid artifact payload")

	// ErrNotFound indicates an unknown artifact id.
	ErrNotFound = errors.New("artifact not found")

	// ErrFileMissing indicates a cataloged artifact whose file is gone from storage.
	ErrFileMissing = errors.New("artifact file missing")

	// ErrMissingModel indicates that no generation model could be resolved
	// from configuration or the request.
	ErrMissingModel = errors.New("missing model configuration")
)

// MissingModelBody is the fixed error body returned when no model is
// resolvable for a generation request.
const MissingModelBody = "Missing GEMINI_MODEL configuration. Set GEMINI_MODEL in the environment or pass `model` in the request body."

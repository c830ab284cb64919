package models

import "errors"

var (
	// ErrNotFound is returned when a referenced document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrNotProcessed is returned when a document has no extracted pages yet
	ErrNotProcessed = errors.New("document not yet processed")
	// ErrGeneration wraps failures of the language model call
	ErrGeneration = errors.New("generation failed")
	// ErrInvalidInput is returned for malformed requests
	ErrInvalidInput = errors.New("invalid input")
)

package model

import "errors"

// Common errors used across the application
var (
	// Remote store errors
	ErrDocumentNotFound  = errors.New("progress document not found")
	ErrDocumentExists    = errors.New("progress document already exists")
	ErrTransientNetwork  = errors.New("transient network failure")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrMalformedDocument = errors.New("malformed progress document")

	// Gameplay errors
	ErrInsufficientCurrency = errors.New("insufficient currency")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidUnit          = errors.New("invalid content unit")
	ErrInvalidField         = errors.New("field cannot be written as a scalar")
	ErrInvalidAmount        = errors.New("amount must be positive")

	// Session errors
	ErrNoIdentity        = errors.New("no player identity")
	ErrProgressNotLoaded = errors.New("progress not loaded")
	ErrStoreClosed       = errors.New("progress store closed")

	// Progression errors
	ErrProgressionComplete = errors.New("no further content units")
	ErrEmptyProgression    = errors.New("progression order is empty")
)

// Package common defines the sentinel errors and small helpers shared by the
// chatline client and its backend adapters. Callers should match errors with
// errors.Is; most call sites wrap them with fmt.Errorf("...: %w", err).
package common

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors. A missing document is usually an empty result, not a failure.
	ErrNotFound = errors.New("not found")

	// Generic flow control.
	ErrInternal = errors.New("internal error")
	ErrClosed   = errors.New("closed")

	// Auth errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrNotSignedIn        = errors.New("not signed in")

	// Transport and persistence errors.
	ErrUpload = errors.New("upload failed")
	ErrWrite  = errors.New("write failed")

	// Conversation state errors.
	ErrBlocked        = errors.New("conversation is blocked")
	ErrNoConversation = errors.New("no active conversation")

	// Pre-flight validation. Every specific error below matches ErrValidation.
	ErrValidation       = errors.New("validation error")
	ErrUsernameTooShort = fmt.Errorf("%w: username must be at least 3 characters", ErrValidation)
	ErrUsernameNumeric  = fmt.Errorf("%w: username must not be purely numeric", ErrValidation)
	ErrUsernameMarkup   = fmt.Errorf("%w: username must not contain markup", ErrValidation)
	ErrUsernameTaken    = fmt.Errorf("%w: username is already taken", ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("%w: malformed email address", ErrValidation)
	ErrWeakPassword     = fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
)

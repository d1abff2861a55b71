package core

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable is returned when the embedder or vector index
	// fails or times out.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationUnavailable is returned when a language model call fails
	// or times out.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrMalformedCandidate marks a retrieved record missing required fields.
	ErrMalformedCandidate = errors.New("malformed candidate")
	// ErrSessionStore is returned when a session backend fails.
	ErrSessionStore = errors.New("session store error")
	// ErrSessionNotFound is returned by SessionStore.Get for unknown IDs.
	ErrSessionNotFound = errors.New("session not found")
)

// RetrievalError wraps a failure of the retrieval path.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrRetrievalUnavailable, e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Is matches ErrRetrievalUnavailable.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrievalUnavailable }

// GenerationError wraps a failure of a language model call.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGenerationUnavailable, e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGenerationUnavailable.
func (e *GenerationError) Is(target error) bool { return target == ErrGenerationUnavailable }

// SessionStoreError wraps a failure of a session backend.
type SessionStoreError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SessionStoreError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", ErrSessionStore, e.Op, e.SessionID, e.Err)
}

func (e *SessionStoreError) Unwrap() error { return e.Err }

// Is matches ErrSessionStore.
func (e *SessionStoreError) Is(target error) bool { return target == ErrSessionStore }

// MalformedCandidateError describes why a candidate was dropped.
type MalformedCandidateError struct {
	ID    string
	Field string
}

func (e *MalformedCandidateError) Error() string {
	return fmt.Sprintf("%s %q: missing or invalid %s", ErrMalformedCandidate, e.ID, e.Field)
}

// Is matches ErrMalformedCandidate.
func (e *MalformedCandidateError) Is(target error) bool { return target == ErrMalformedCandidate }

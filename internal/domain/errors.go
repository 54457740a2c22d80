package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced by the retrieval/generation pipeline. Callers match
// them with errors.Is; the underlying provider error stays reachable for logs
// but is never part of Error().
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrInvalidDocument   = errors.New("document could not be processed")
	ErrInvalidInput      = errors.New("invalid input")

	ErrEmbedding  = errors.New("embedding failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation is not active")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrNothingToRetry       = errors.New("no unanswered message to retry")

	// ErrTenantIsolationViolation means a record from one tenant surfaced in
	// another tenant's scope. It must abort the request.
	ErrTenantIsolationViolation = errors.New("tenant isolation violation")
)

// StageError ties a failure kind to the pipeline step that produced it.
type StageError struct {
	Kind error
	Op   string
	Err  error
}

// Stage wraps err as a failure of the given kind during op.
func Stage(kind error, op string, err error) error {
	return &StageError{Kind: kind, Op: op, Err: err}
}

func (e *StageError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if IsTimeout(e.Err) {
		msg += " (timeout)"
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Cause returns the wrapped error, including provider details.
func (e *StageError) Cause() error {
	return e.Err
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return err != nil && errors.Is(err, context.DeadlineExceeded)
}

// Describe renders err with its full cause chain, for server-side logs only.
func Describe(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Cause() != nil {
		return fmt.Sprintf("%s: %v", se.Error(), se.Cause())
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

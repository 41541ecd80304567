// Package scheduler implements the campaign delivery engine: the lifecycle
// state machine, per-campaign send loops, the distributed processing lock,
// and the scheduling-window evaluator.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/HeltonFraga01/cortexx-engine/models"
)

// SendError classifies a gateway or quota failure for one contact. Transient
// errors are retried with backoff; permanent errors fail the contact
// immediately. Send errors never escape the send loop.
type SendError struct {
	Type    models.SendErrorType
	Code    string
	Message string
	Err     error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s send error [%s]: %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s send error [%s]: %s", e.Type, e.Code, e.Message)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps a retryable failure (network, timeout, rate limit,
// quota denial)
func NewTransientError(code, message string, err error) *SendError {
	return &SendError{Type: models.SendErrorTypeTransient, Code: code, Message: message, Err: err}
}

// NewPermanentError wraps a non-retryable failure (invalid number, blocked
// recipient)
func NewPermanentError(code, message string, err error) *SendError {
	return &SendError{Type: models.SendErrorTypePermanent, Code: code, Message: message, Err: err}
}

// ClassifySendError extracts the SendError from err; unknown errors are
// treated as transient so a flaky gateway never permanently fails a contact.
func ClassifySendError(err error) *SendError {
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	return NewTransientError("UNKNOWN", "unclassified send failure", err)
}

// Lock errors
var (
	// ErrLockHeld means another live worker owns the campaign
	ErrLockHeld = errors.New("campaign processing lock is held")
	// ErrNotLockOwner means a release or refresh used a token that no longer owns the lock
	ErrNotLockOwner = errors.New("processing lock is owned by a different token")
)

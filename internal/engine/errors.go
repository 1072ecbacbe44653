package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// StatusError is a protocol outcome other than success that an engine
// reports to the caller as a status message.
//
// Status errors are never retried. The dispatcher turns them into a
// taxii.StatusMessage carrying Type, Message and Details verbatim.
type StatusError struct {
	// Type is the status reported to the caller.
	Type taxii.StatusType

	// Message is a human-readable description.
	Message string

	// Details carries structured diagnostics (supported content,
	// acceptable destinations, offending item).
	Details taxii.Details
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// StatusMessage converts the error into a reply to the given request.
func (e *StatusError) StatusMessage(messageID, inResponseTo string) *taxii.StatusMessage {
	return &taxii.StatusMessage{
		MessageID:    messageID,
		InResponseTo: inResponseTo,
		Type:         e.Type,
		Message:      e.Message,
		Details:      e.Details,
	}
}

// AsStatusError extracts a StatusError from err. Uses errors.As to handle
// wrapped errors.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StatusOf returns the status type of err, or "" if err is not a StatusError.
func StatusOf(err error) taxii.StatusType {
	if se, ok := AsStatusError(err); ok {
		return se.Type
	}
	return ""
}

// IsNotFound returns true if err reports a missing or mismatched entity.
func IsNotFound(err error) bool { return StatusOf(err) == taxii.StatusNotFound }

// IsBadMessage returns true if err reports a malformed or disallowed request.
func IsBadMessage(err error) bool { return StatusOf(err) == taxii.StatusBadMessage }

// IsUnauthorized returns true if err reports a permission failure.
func IsUnauthorized(err error) bool { return StatusOf(err) == taxii.StatusUnauthorized }

// IsDenied returns true if err reports a policy refusal.
func IsDenied(err error) bool { return StatusOf(err) == taxii.StatusDenied }

// IsUnsupportedContent returns true if err reports a binding negotiation failure.
func IsUnsupportedContent(err error) bool {
	return StatusOf(err) == taxii.StatusUnsupportedContentBinding
}

// IsDestinationError returns true if err reports an inbox destination policy violation.
func IsDestinationError(err error) bool {
	return StatusOf(err) == taxii.StatusDestinationCollectionError
}

// IsFailure returns true if err is a terminal catch-all failure.
func IsFailure(err error) bool { return StatusOf(err) == taxii.StatusFailure }

// NewNotFound creates a NOT_FOUND error. A non-empty item is attached as the
// ITEM detail.
func NewNotFound(item, format string, args ...any) *StatusError {
	e := &StatusError{Type: taxii.StatusNotFound, Message: fmt.Sprintf(format, args...)}
	if item != "" {
		e.Details = taxii.Details{}.Set(taxii.DetailItem, item)
	}
	return e
}

// NewBadMessage creates a BAD_MESSAGE error.
func NewBadMessage(format string, args ...any) *StatusError {
	return &StatusError{Type: taxii.StatusBadMessage, Message: fmt.Sprintf(format, args...)}
}

// NewDenied creates a DENIED error.
func NewDenied(format string, args ...any) *StatusError {
	return &StatusError{Type: taxii.StatusDenied, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthorized creates an UNAUTHORIZED error.
func NewUnauthorized(format string, args ...any) *StatusError {
	return &StatusError{Type: taxii.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NewFailure creates a FAILURE error.
func NewFailure(format string, args ...any) *StatusError {
	return &StatusError{Type: taxii.StatusFailure, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedContent creates an UNSUPPORTED_CONTENT error listing every
// binding id the collection supports.
func NewUnsupportedContent(c *taxii.Collection) *StatusError {
	return &StatusError{
		Type:    taxii.StatusUnsupportedContentBinding,
		Message: fmt.Sprintf("content bindings not supported by collection %s", c.Name),
		Details: taxii.Details{taxii.DetailSupportedContent: taxii.BindingIDs(c.SupportedContent)},
	}
}

// NewDestinationError creates a DESTINATION_COLLECTION_ERROR listing the
// acceptable destination names.
func NewDestinationError(message string, acceptable []string) *StatusError {
	if acceptable == nil {
		acceptable = []string{}
	}
	return &StatusError{
		Type:    taxii.StatusDestinationCollectionError,
		Message: message,
		Details: taxii.Details{taxii.DetailAcceptableDestination: acceptable},
	}
}

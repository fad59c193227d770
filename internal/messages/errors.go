package messages

import (
	"errors"
	"fmt"
)

var (
	// ErrMessageNotFound is returned when a message id is not in the store
	ErrMessageNotFound = errors.New("message not found")

	// ErrDuplicateID is returned when inserting a message whose id already exists
	ErrDuplicateID = errors.New("message id already exists")
)

// ValidationError rejects message input before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("messages: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

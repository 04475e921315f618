package cognition

import (
	"errors"
	"fmt"
)

// NotFoundError reports a lifecycle operation referencing an unknown
// cognition or execution id. It is always surfaced to the caller and never
// retried.
type NotFoundError struct {
	Kind string // "cognition" or "execution"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrRetired is returned when an operation would schedule or mutate a
// retired definition.
var ErrRetired = errors.New("cognition is retired")

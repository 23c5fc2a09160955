package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is returned when the messaging provider answers with a non-2xx status.
// Detail holds the decoded response body, or the raw text when it is not JSON.
type Error struct {
	Op         string
	StatusCode int
	Detail     any
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: unexpected status %d", e.Op, e.StatusCode)
}

// Details returns the structured detail carried by a gateway error, falling back
// to the error text for transport failures.
func Details(err error) any {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Detail != nil {
		return gwErr.Detail
	}
	return errors.Cause(err).Error()
}

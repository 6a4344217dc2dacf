package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSession is returned by calls that need a signed-in user.
var ErrNoSession = errors.New("not signed in")

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

const recursivePolicyCode = "42P17"

// IsRecursivePolicyError reports whether err is the backend's row-policy
// recursion failure on profile reads.
func IsRecursivePolicyError(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == recursivePolicyCode && strings.Contains(apiErr.Message, "infinite recursion")
}

// HasCode reports whether err is a backend error carrying code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

package authz

import (
	"errors"
	"fmt"
)

// ErrForbidden is matched by every denial returned from Authorize.
var ErrForbidden = errors.New("permission denied")

// ForbiddenError describes a denied request.
type ForbiddenError struct {
	Request Request
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permission denied: %s cannot %s %s", e.Request.Subject, e.Request.Action, e.Request.Object)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

func configError(msg string, args ...any) error {
	return fmt.Errorf("authz: "+msg, args...)
}

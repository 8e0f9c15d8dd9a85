package authorization

import "errors"

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid_role")
)

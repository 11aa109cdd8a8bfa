package subscription

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("subscription not found")
	ErrForbidden    = errors.New("not allowed")
	ErrMemberLimit  = errors.New("member limit reached")
	ErrNoAccount    = errors.New("subscription has no account")
)

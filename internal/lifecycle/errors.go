package lifecycle

import "errors"

// Business-rule conflicts and validation failures the HTTP layer maps to
// 4xx responses. Infrastructure errors pass through untouched.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotOwner          = errors.New("order does not belong to caller")
	ErrMissingShipping   = errors.New("shipping address is required")
	ErrNoItems           = errors.New("order items are required")
)

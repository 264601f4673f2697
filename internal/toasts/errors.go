package toasts

import "errors"

// Toast errors.
var (
	ErrMalformedEvent  = errors.New("malformed notification event")
	ErrToastNotVisible = errors.New("toast is not visible")
)

package notifications

import "errors"

// Service errors.
var (
	ErrRateLimited     = errors.New("too many notification events for recipient")
	ErrHistoryDisabled = errors.New("toast history is disabled")
)

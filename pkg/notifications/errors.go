package notifications

import "errors"

var (
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrDuplicateNotification = errors.New("notification already exists")
	ErrInvalidNotification   = errors.New("invalid notification")
	ErrUnknownBulkAction     = errors.New("unknown bulk action")
	ErrMissingIdentity       = errors.New("caller identity is required")
)

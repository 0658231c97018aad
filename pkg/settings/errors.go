package settings

import "errors"

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrInvalidSettings  = errors.New("invalid notification settings")
	ErrMissingUserID    = errors.New("user id is required")
	ErrConcurrentUpdate = errors.New("settings changed concurrently, retries exhausted")
)

package policy

import "errors"

var (
	ErrInvalidEvent   = errors.New("invalid event")
	ErrInvalidRule    = errors.New("invalid policy rule")
	ErrRulesNotLoaded = errors.New("failed to load policy rules")
)

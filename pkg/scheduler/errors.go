package scheduler

import "errors"

var (
	ErrTriggerNotFound   = errors.New("trigger not found")
	ErrDuplicateTrigger  = errors.New("trigger already registered")
	ErrInvalidTrigger    = errors.New("invalid trigger")
	ErrInvalidTransition = errors.New("invalid trigger status transition")
	ErrSchedulerStopped  = errors.New("scheduler stopped")
	ErrRepositoryNil     = errors.New("trigger repository is nil")
	ErrHandlerNil        = errors.New("trigger handler is nil")

	// ErrSchedulerFault marks internal invariant violations such as a double fire.
	ErrSchedulerFault = errors.New("scheduler fault")
)

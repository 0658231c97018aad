package eventsource

import "errors"

var (
	ErrInvalidEnvelope = errors.New("invalid event envelope")
	ErrUnknownAction   = errors.New("unknown event action")
	ErrNoBrokers       = errors.New("no kafka brokers configured")
)

package channel

import "errors"

var (
	ErrDeliveryFailed       = errors.New("delivery failed")
	ErrNoAdapter            = errors.New("no adapter registered for channel")
	ErrNoAddress            = errors.New("recipient has no address for channel")
	ErrContactNotFound      = errors.New("contact not found")
	ErrUnsupportedRecipient = errors.New("recipient not supported by channel")
	ErrInvalidConfig        = errors.New("invalid channel config")
)

package engine

import "errors"

var ErrLiveUnavailable = errors.New("live notifications are not enabled")

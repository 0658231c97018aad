package channel

import (
	"context"
	"errors"

	"github.com/dmitrymomot/classnotify/pkg/email"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// Adapter delivers a stored notification record over one channel.
type Adapter interface {
	Channel() notifications.Channel
	Send(ctx context.Context, n notifications.Notification) error
}

// Registry maps channels to their adapters.
type Registry struct {
	adapters map[notifications.Channel]Adapter
}

// NewRegistry registers adapters by their channel. Later adapters replace earlier ones.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[notifications.Channel]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Channel()] = a
		}
	}
	return r
}

// Get returns the adapter for ch.
func (r *Registry) Get(ch notifications.Channel) (Adapter, bool) {
	a, ok := r.adapters[ch]
	return a, ok
}

// Channels returns the registered channels in canonical order.
func (r *Registry) Channels() []notifications.Channel {
	var out []notifications.Channel
	for _, ch := range notifications.Channels {
		if _, ok := r.adapters[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNoAddress) ||
		errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrUnsupportedRecipient) ||
		errors.Is(err, email.ErrInvalidParams)
}

package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// Hub fans stored SYSTEM notifications out to live in-app subscribers.
// Slow subscribers are dropped rather than blocking Publish.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

// Subscription receives the notifications visible to its caller.
type Subscription struct {
	hub    *Hub
	caller notifications.Identity
	ch     chan notifications.Notification
	once   sync.Once
}

func NewHub(cfg HubConfig, l *slog.Logger) *Hub {
	if l == nil {
		l = slog.Default()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: max(cfg.BufferSize, 1),
		logger: l,
	}
}

// Subscribe registers caller until ctx is done or the subscription is closed.
func (h *Hub) Subscribe(ctx context.Context, caller notifications.Identity) *Subscription {
	sub := &Subscription{hub: h, caller: caller, ch: make(chan notifications.Notification, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.closeChan()
		return sub
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub
}

// C returns the receive channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan notifications.Notification {
	return s.ch
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers n to every subscriber allowed to see it and returns how many received it.
func (h *Hub) Publish(ctx context.Context, n notifications.Notification) int {
	h.mu.RLock()
	var slow []*Subscription
	delivered := 0
	for sub := range h.subs {
		if !n.VisibleTo(sub.caller) {
			continue
		}
		select {
		case sub.ch <- n:
			delivered++
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "dropping slow live subscriber",
			logger.UserID(sub.caller.UserID),
			logger.NotificationID(n.ID),
		)
		sub.Close()
	}
	return delivered
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.closeChan()
	}
}

// SystemAdapter completes SYSTEM delivery: the stored record is the delivery,
// and the hub pushes it to anyone connected.
type SystemAdapter struct {
	hub *Hub
}

func NewSystemAdapter(hub *Hub) *SystemAdapter {
	return &SystemAdapter{hub: hub}
}

func (a *SystemAdapter) Channel() notifications.Channel { return notifications.ChannelSystem }

func (a *SystemAdapter) Send(ctx context.Context, n notifications.Notification) error {
	if a.hub != nil {
		a.hub.Publish(ctx, n)
	}
	return nil
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// stream pushes SYSTEM notifications to the caller as datastar signal patches:
//
//	{"notification": {...}, "unread": 3}
//
// The unread count is sent on connect and re-sent every heartbeat.
func (a *api) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFrom(r)

	sub, err := a.svc.Subscribe(ctx, caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer sub.Close()

	sse := datastar.NewSSE(w, r)
	send := func(signals map[string]any) bool {
		data, err := json.Marshal(signals)
		if err == nil {
			err = sse.PatchSignals(data)
		}
		if err != nil {
			a.logger.LogAttrs(ctx, slog.LevelDebug, "live stream closed",
				logger.UserID(caller.UserID),
				logger.Error(err),
			)
			return false
		}
		return true
	}
	unread := func() (int, bool) {
		n, err := a.svc.CountUnread(ctx, caller)
		if err != nil {
			a.logger.LogAttrs(ctx, slog.LevelWarn, "unread count failed", logger.Error(err))
			return 0, false
		}
		return n, true
	}

	if n, ok := unread(); ok && !send(map[string]any{"unread": n}) {
		return
	}

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, open := <-sub.C():
			if !open {
				return
			}
			signals := map[string]any{"notification": liveItem(n)}
			if count, ok := unread(); ok {
				signals["unread"] = count
			}
			if !send(signals) {
				return
			}
		case <-ticker.C:
			if n, ok := unread(); ok && !send(map[string]any{"unread": n}) {
				return
			}
		}
	}
}

type live struct {
	ID        string                 `json:"id"`
	Type      notifications.Type     `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  notifications.Priority `json:"priority"`
	RelatedID string                 `json:"related_id,omitempty"`
	ActionURL string                 `json:"action_url,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func liveItem(n notifications.Notification) live {
	return live{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		RelatedID: n.RelatedID,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	}
}

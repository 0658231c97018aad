package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/validator"
)

const maxPageSize = 200

// parseFilter reads list filters from the query string:
// type (repeatable or comma separated), read, priority, channel, q, limit, offset.
func parseFilter(r *http.Request) (notifications.Filter, error) {
	q := r.URL.Query()
	var f notifications.Filter
	var rules []validator.Rule

	for _, raw := range q["type"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			t := notifications.Type(v)
			rules = append(rules, validator.InList("type", t, notifications.Types))
			f.Types = append(f.Types, t)
		}
	}

	if v := q.Get("read"); v != "" {
		b, err := strconv.ParseBool(v)
		rules = append(rules, validator.Rule{
			Check: func() bool { return err == nil },
			Error: validator.ValidationError{Field: "read", Message: "must be true or false"},
		})
		f.Read = notifications.Bool(b)
	}

	if v := q.Get("priority"); v != "" {
		f.Priority = notifications.Priority(v)
		rules = append(rules, validator.Rule{
			Check: f.Priority.Valid,
			Error: validator.ValidationError{Field: "priority", Message: "must be low, medium or high"},
		})
	}

	if v := q.Get("channel"); v != "" {
		f.Channel = notifications.Channel(v)
		rules = append(rules, validator.InList("channel", f.Channel, notifications.Channels))
	}

	f.Search = strings.TrimSpace(q.Get("q"))
	rules = append(rules, validator.MaxLenString("q", f.Search, 200))

	f.Limit, rules = intParam(q.Get("limit"), "limit", 0, maxPageSize, rules)
	f.Offset, rules = intParam(q.Get("offset"), "offset", 0, 1<<31-1, rules)

	if err := validator.Apply(rules...); err != nil {
		return notifications.Filter{}, err
	}
	return f, nil
}

func intParam(raw, field string, lo, hi int, rules []validator.Rule) (int, []validator.Rule) {
	if raw == "" {
		return 0, rules
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, append(rules, validator.Rule{
			Check: func() bool { return false },
			Error: validator.ValidationError{Field: field, Message: "must be an integer"},
		})
	}
	return n, append(rules, validator.Range(field, n, lo, hi))
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.svc.ListNotifications(r.Context(), callerFrom(r), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []notifications.Notification{}
	}
	okMeta(w, list, map[string]any{
		"count":  len(list),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (a *api) getNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.GetNotification(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, n)
}

func (a *api) countUnread(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.CountUnread(r.Context(), callerFrom(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]int{"unread": n})
}

func (a *api) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.svc.MarkRead(r.Context(), callerFrom(r), id); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]any{"id": id, "read": true})
}

func (a *api) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.MarkAllRead(r.Context(), callerFrom(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]int{"updated": n})
}

func (a *api) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteNotification(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	IDs    []string                 `json:"ids"`
	Action notifications.BulkAction `json:"action"`
}

func (a *api) bulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	err := validator.Apply(
		validator.RequiredSlice("ids", req.IDs),
		validator.Range("ids", len(req.IDs), 0, maxPageSize),
		validator.InList("action", req.Action, []notifications.BulkAction{notifications.BulkMarkRead, notifications.BulkDelete}),
	)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	results, err := a.svc.BulkAction(r.Context(), callerFrom(r), req.IDs, req.Action)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}
	okMeta(w, results, map[string]any{"succeeded": len(results) - failed, "failed": failed})
}

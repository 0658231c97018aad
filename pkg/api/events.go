package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/classnotify/pkg/engine"
	"github.com/dmitrymomot/classnotify/pkg/policy"
)

// registerEvent schedules an event. With ?replace=true pending triggers of the
// same related id are cancelled first.
func (a *api) registerEvent(w http.ResponseWriter, r *http.Request) {
	var ev policy.Event
	if err := decode(w, r, &ev); err != nil {
		a.fail(w, r, err)
		return
	}

	register := a.svc.RegisterEvent
	if replace, _ := strconv.ParseBool(r.URL.Query().Get("replace")); replace {
		register = a.svc.RescheduleEvent
	}

	regs, err := register(r.Context(), ev)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if regs == nil {
		regs = []engine.Registration{}
	}
	writeJSON(w, http.StatusCreated, Response{Data: regs, Meta: map[string]any{"triggers": len(regs)}})
}

func (a *api) cancelRelated(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.CancelForRelatedID(r.Context(), chi.URLParam(r, "relatedID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]int{"cancelled": n})
}

func (a *api) getTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := a.svc.Trigger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, t)
}

// cancelTrigger answers 200 with cancelled=false when the trigger already fired.
func (a *api) cancelTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := a.svc.CancelTrigger(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, map[string]any{"id": id, "cancelled": cancelled})
}

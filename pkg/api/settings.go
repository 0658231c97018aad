package api

import (
	"net/http"

	"github.com/dmitrymomot/classnotify/pkg/settings"
)

func (a *api) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.svc.GetSettings(r.Context(), callerFrom(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, s)
}

func (a *api) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decode(w, r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	s, err := a.svc.UpdateSettings(r.Context(), callerFrom(r).UserID, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, s)
}

func (a *api) resetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.svc.ResetSettings(r.Context(), callerFrom(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, s)
}

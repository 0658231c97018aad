package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type identityKey struct{}

// requireIdentity reads the caller set by the upstream gateway.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := notifications.Identity{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   strings.TrimSpace(r.Header.Get(HeaderUserRole)),
		}
		if caller.UserID == "" && caller.Role == "" {
			_, detail := classify(errNoIdentity)
			writeJSON(w, http.StatusUnauthorized, Response{Error: detail})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, caller)))
	})
}

// requireUser rejects role-only callers.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r).UserID == "" {
			_, detail := classify(errNoUser)
			writeJSON(w, http.StatusUnauthorized, Response{Error: detail})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) notifications.Identity {
	caller, _ := r.Context().Value(identityKey{}).(notifications.Identity)
	return caller
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/classnotify/pkg/engine"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
	"github.com/dmitrymomot/classnotify/pkg/settings"
	"github.com/dmitrymomot/classnotify/pkg/validator"
)

// Response is the JSON envelope of every endpoint.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func okMeta(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

var (
	errInvalidJSON = errors.New("request body is not valid JSON")
	errNoIdentity  = errors.New("X-User-ID or X-User-Role header is required")
	errNoUser      = errors.New("X-User-ID header is required")
)

// fail maps err to a status and error code. Unknown errors are logged and hidden.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, Response{Error: detail})
}

func classify(err error) (int, *ErrorDetail) {
	if ve := validator.Extract(err); ve != nil {
		d := &ErrorDetail{Code: "validation_error", Message: ve.Error(), Details: map[string][]string{}}
		for _, e := range ve {
			d.Details[e.Field] = append(d.Details[e.Field], e.Message)
		}
		return http.StatusUnprocessableEntity, d
	}

	switch {
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_json", Message: err.Error()}
	case errors.Is(err, errNoIdentity), errors.Is(err, errNoUser),
		errors.Is(err, notifications.ErrMissingIdentity), errors.Is(err, settings.ErrMissingUserID):
		return http.StatusUnauthorized, &ErrorDetail{Code: "missing_identity", Message: err.Error()}
	case errors.Is(err, notifications.ErrNotificationNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "notification_not_found", Message: "notification not found"}
	case errors.Is(err, scheduler.ErrTriggerNotFound):
		return http.StatusNotFound, &ErrorDetail{Code: "trigger_not_found", Message: "trigger not found"}
	case errors.Is(err, policy.ErrInvalidEvent), errors.Is(err, settings.ErrInvalidSettings),
		errors.Is(err, notifications.ErrUnknownBulkAction):
		return http.StatusUnprocessableEntity, &ErrorDetail{Code: "validation_error", Message: err.Error()}
	case errors.Is(err, settings.ErrConcurrentUpdate):
		return http.StatusConflict, &ErrorDetail{Code: "conflict", Message: err.Error()}
	case errors.Is(err, engine.ErrLiveUnavailable), errors.Is(err, scheduler.ErrSchedulerStopped):
		return http.StatusServiceUnavailable, &ErrorDetail{Code: "unavailable", Message: err.Error()}
	}
	return http.StatusInternalServerError, &ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errInvalidJSON, err)
	}
	return nil
}

// Package api serves the notification engine over HTTP with chi.
//
// Caller identity comes from the X-User-ID and X-User-Role headers set by an
// upstream gateway; the API performs no authentication itself.
//
// Routes:
//
//	GET    /healthz
//	POST   /events                      register an event (?replace=true reschedules)
//	DELETE /events/{relatedID}          cancel pending triggers of an entity
//	GET    /triggers/{id}
//	DELETE /triggers/{id}
//	GET    /notifications               list (type, read, priority, channel, q, limit, offset)
//	GET    /notifications/unread-count
//	GET    /notifications/stream        live SYSTEM notifications (SSE, datastar signals)
//	GET    /notifications/{id}
//	POST   /notifications/{id}/read
//	POST   /notifications/read-all
//	DELETE /notifications/{id}
//	POST   /notifications/bulk          {"ids": [...], "action": "mark_read"|"delete"}
//	GET    /settings
//	PATCH  /settings
//	DELETE /settings                    restore defaults
//
// Responses use the envelope {"data": ..., "meta": ..., "error": {"code", "message", "details"}}.
// Validation failures answer 422 with per-field details, unknown ids 404.
package api

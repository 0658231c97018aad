package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/classnotify/pkg/channel"
	"github.com/dmitrymomot/classnotify/pkg/engine"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/requestid"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

// Service is the engine surface served over HTTP.
type Service interface {
	RegisterEvent(ctx context.Context, ev policy.Event) ([]engine.Registration, error)
	RescheduleEvent(ctx context.Context, ev policy.Event) ([]engine.Registration, error)
	CancelForRelatedID(ctx context.Context, relatedID string) (int, error)
	Trigger(ctx context.Context, id string) (scheduler.Trigger, error)
	CancelTrigger(ctx context.Context, id string) (bool, error)

	ListNotifications(ctx context.Context, caller notifications.Identity, filter notifications.Filter) ([]notifications.Notification, error)
	GetNotification(ctx context.Context, caller notifications.Identity, id string) (*notifications.Notification, error)
	MarkRead(ctx context.Context, caller notifications.Identity, id string) error
	MarkAllRead(ctx context.Context, caller notifications.Identity) (int, error)
	DeleteNotification(ctx context.Context, caller notifications.Identity, id string) error
	BulkAction(ctx context.Context, caller notifications.Identity, ids []string, action notifications.BulkAction) ([]notifications.BulkResult, error)
	CountUnread(ctx context.Context, caller notifications.Identity) (int, error)
	Subscribe(ctx context.Context, caller notifications.Identity) (*channel.Subscription, error)

	GetSettings(ctx context.Context, userID string) (settings.Settings, error)
	UpdateSettings(ctx context.Context, userID string, patch settings.Patch) (settings.Settings, error)
	ResetSettings(ctx context.Context, userID string) (settings.Settings, error)
}

type api struct {
	svc       Service
	logger    *slog.Logger
	health    http.Handler
	heartbeat time.Duration
}

// Option configures the router.
type Option func(*api)

// WithAPILogger sets the request and error logger.
func WithAPILogger(l *slog.Logger) Option {
	return func(a *api) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHealthCheck serves h on GET /healthz.
func WithHealthCheck(h http.Handler) Option {
	return func(a *api) {
		a.health = h
	}
}

// WithHeartbeat sets how often the live stream re-sends the unread count.
func WithHeartbeat(d time.Duration) Option {
	return func(a *api) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// NewRouter mounts every route on a chi router.
func NewRouter(svc Service, opts ...Option) http.Handler {
	a := &api{
		svc:       svc,
		logger:    slog.Default(),
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("api"))

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)

	if a.health != nil {
		r.Method(http.MethodGet, "/healthz", a.health)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ALIVE"))
		})
	}

	r.Route("/events", func(r chi.Router) {
		r.Post("/", a.registerEvent)
		r.Delete("/{relatedID}", a.cancelRelated)
	})
	r.Route("/triggers/{id}", func(r chi.Router) {
		r.Get("/", a.getTrigger)
		r.Delete("/", a.cancelTrigger)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", a.listNotifications)
			r.Get("/unread-count", a.countUnread)
			r.Get("/stream", a.stream)
			r.Post("/read-all", a.markAllRead)
			r.Post("/bulk", a.bulkAction)
			r.Get("/{id}", a.getNotification)
			r.Post("/{id}/read", a.markRead)
			r.Delete("/{id}", a.deleteNotification)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", a.getSettings)
			r.Patch("/", a.updateSettings)
			r.Delete("/", a.resetSettings)
		})
	})

	return r
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		a.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}

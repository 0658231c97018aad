package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// Messenger is the part of the FCM client the push adapter uses.
type Messenger interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// NewFirebaseMessenger builds an FCM client from cfg.
func NewFirebaseMessenger(ctx context.Context, cfg PushConfig) (*messaging.Client, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("%w: firebase credentials are required", ErrInvalidConfig)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("create firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("create fcm client: %w", err)
	}
	return client, nil
}

// LogMessenger logs push messages instead of sending them.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(l *slog.Logger) *LogMessenger {
	if l == nil {
		l = slog.Default()
	}
	return &LogMessenger{logger: l}
}

func (m *LogMessenger) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	attrs := []slog.Attr{slog.String("token", msg.Token), slog.String("topic", msg.Topic)}
	if msg.Notification != nil {
		attrs = append(attrs, slog.String("title", msg.Notification.Title))
	}
	m.logger.LogAttrs(ctx, slog.LevelInfo, "push not sent, dev messenger", attrs...)
	return "dev", nil
}

// PushAdapter sends to the user's device token, or to a per-role topic for broadcasts.
type PushAdapter struct {
	messenger   Messenger
	dir         Directory
	topicPrefix string
}

func NewPushAdapter(m Messenger, dir Directory, topicPrefix string) *PushAdapter {
	if topicPrefix == "" {
		topicPrefix = "role-"
	}
	return &PushAdapter{messenger: m, dir: dir, topicPrefix: topicPrefix}
}

func (a *PushAdapter) Channel() notifications.Channel { return notifications.ChannelPush }

var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\-_.~%]`)

// Topic returns the FCM topic for role broadcasts.
func (a *PushAdapter) Topic(role string) string {
	return a.topicPrefix + topicUnsafe.ReplaceAllString(role, "_")
}

func (a *PushAdapter) Send(ctx context.Context, n notifications.Notification) error {
	msg := &messaging.Message{
		Notification: &messaging.Notification{Title: n.Title, Body: n.Message},
		Data: map[string]string{
			"notification_id": n.LogicalID,
			"type":            string(n.Type),
			"related_id":      n.RelatedID,
			"action_url":      n.ActionURL,
		},
	}
	if n.Priority == notifications.PriorityHigh {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
	}

	if n.Broadcast() {
		msg.Topic = a.Topic(n.UserRole)
	} else {
		c, err := a.dir.Lookup(ctx, n.UserID)
		if err != nil {
			return errors.Join(ErrDeliveryFailed, err)
		}
		if c.PushToken == "" {
			return errors.Join(ErrDeliveryFailed, ErrNoAddress)
		}
		msg.Token = c.PushToken
	}

	if _, err := a.messenger.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return errors.Join(ErrDeliveryFailed, ErrNoAddress, err)
		}
		return errors.Join(ErrDeliveryFailed, err)
	}
	return nil
}

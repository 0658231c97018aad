package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/classnotify/pkg/email"
	"github.com/dmitrymomot/classnotify/pkg/email/templates"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// EmailAdapter renders a notification and sends it to every matching contact's address.
type EmailAdapter struct {
	sender email.Sender
	dir    Directory
}

func NewEmailAdapter(sender email.Sender, dir Directory) *EmailAdapter {
	return &EmailAdapter{sender: sender, dir: dir}
}

func (a *EmailAdapter) Channel() notifications.Channel { return notifications.ChannelEmail }

func (a *EmailAdapter) Send(ctx context.Context, n notifications.Notification) error {
	contacts, err := recipients(ctx, a.dir, n.UserID, n.UserRole)
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	body, err := templates.Render(ctx, templates.Notification(templates.NotificationData{
		Title:     n.Title,
		Message:   n.Message,
		Category:  string(n.Type),
		ActionURL: n.ActionURL,
	}))
	if err != nil {
		return errors.Join(ErrDeliveryFailed, fmt.Errorf("render email: %w", err))
	}

	return fanOut(ctx, contacts, !n.Broadcast(), func(c Contact) error {
		if c.Email == "" {
			return ErrNoAddress
		}
		return a.sender.SendEmail(ctx, email.SendEmailParams{
			SendTo:   c.Email,
			Subject:  n.Title,
			BodyHTML: body,
			Tag:      string(n.Type),
		})
	})
}

// fanOut calls send for each contact. For a single addressed user a missing
// address is an error; role broadcasts skip contacts without one. Contacts
// already served in an earlier attempt, per the Progress in ctx, are skipped.
func fanOut(ctx context.Context, contacts []Contact, strict bool, send func(Contact) error) error {
	progress := progressFrom(ctx)
	var errs []error
	for _, c := range contacts {
		if progress.done(c.UserID) {
			continue
		}
		err := send(c)
		if errors.Is(err, ErrNoAddress) && !strict {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", c.UserID, err))
			continue
		}
		progress.mark(c.UserID)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrDeliveryFailed}, errs...)...)
	}
	return nil
}

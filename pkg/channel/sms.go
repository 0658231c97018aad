package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender talks to the Twilio Messages REST API.
type TwilioSender struct {
	cfg    SMSConfig
	client *http.Client
}

func NewTwilioSender(cfg SMSConfig) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: twilio account sid, auth token and sender number are required", ErrInvalidConfig)
	}
	return &TwilioSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr twilioError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	err = fmt.Errorf("twilio status %d: code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	if resp.StatusCode == http.StatusBadRequest {
		// invalid number and similar rejections will not succeed on retry
		return errors.Join(ErrNoAddress, err)
	}
	return err
}

// LogSMSSender logs messages instead of sending them.
type LogSMSSender struct {
	logger *slog.Logger
}

func NewLogSMSSender(l *slog.Logger) *LogSMSSender {
	if l == nil {
		l = slog.Default()
	}
	return &LogSMSSender{logger: l}
}

func (s *LogSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "sms not sent, dev sender",
		slog.String("to", to),
		slog.String("body", body),
	)
	return nil
}

// SMSAdapter sends the notification title and message as one text.
type SMSAdapter struct {
	sender SMSSender
	dir    Directory
	logger *slog.Logger
}

func NewSMSAdapter(sender SMSSender, dir Directory) *SMSAdapter {
	return &SMSAdapter{sender: sender, dir: dir, logger: slog.Default()}
}

func (a *SMSAdapter) Channel() notifications.Channel { return notifications.ChannelSMS }

func (a *SMSAdapter) Send(ctx context.Context, n notifications.Notification) error {
	contacts, err := recipients(ctx, a.dir, n.UserID, n.UserRole)
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}

	return fanOut(ctx, contacts, !n.Broadcast(), func(c Contact) error {
		if c.Phone == "" {
			return ErrNoAddress
		}
		if err := a.sender.SendSMS(ctx, c.Phone, text); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelDebug, "sms send failed",
				logger.NotificationID(n.ID),
				logger.UserID(c.UserID),
				logger.Error(err),
			)
			return err
		}
		return nil
	})
}

package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/email"
	"github.com/dmitrymomot/classnotify/pkg/email/templates"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{SendTo: "parent@example.com", Subject: "Exam", BodyHTML: "<p>hi</p>"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(*email.SendEmailParams)
	}{
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = "" }},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = " " }},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.modify(&p)
			assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := email.New(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)

	s, err = email.New(email.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a", SenderEmail: "no-reply@school.test"})
	require.NoError(t, err)
	assert.IsType(t, &email.PostmarkSender{}, s)

	_, err = email.NewPostmarkSender(email.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a", SenderEmail: "bad"})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewPostmarkSender(email.Config{})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestDevSender(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := email.NewDevSender(dir)

	err := s.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "parent@example.com",
		Subject:  "Lesson started",
		BodyHTML: "<p>Algebra</p>",
		Tag:      "online_lesson",
	})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, files, 2)

	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Contains(t, f, "online_lesson")
		if strings.HasSuffix(f, ".json") {
			var meta map[string]string
			require.NoError(t, json.Unmarshal(data, &meta))
			assert.Equal(t, "parent@example.com", meta["send_to"])
		} else {
			assert.Equal(t, "<p>Algebra</p>", string(data))
		}
	}

	assert.ErrorIs(t, s.SendEmail(context.Background(), email.SendEmailParams{}), email.ErrInvalidParams)
}

func TestNotificationTemplate(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.Notification(templates.NotificationData{
		Title:     "Fees <due>",
		Message:   "Pay by Friday",
		Category:  "fee_reminder",
		ActionURL: "/fees/42",
	}))
	require.NoError(t, err)
	assert.Contains(t, html, "Fees &lt;due&gt;")
	assert.Contains(t, html, "Pay by Friday")
	assert.Contains(t, html, `href="/fees/42"`)
	assert.NotContains(t, html, "<due>")
}

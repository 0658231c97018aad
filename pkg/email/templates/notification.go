package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// NotificationData feeds the notification email layout.
type NotificationData struct {
	Title     string
	Message   string
	Category  string
	ActionURL string
}

// Notification is the HTML body of every notification email.
func Notification(d NotificationData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html><body style="font-family:sans-serif;color:#1f2933">`); err != nil {
			return err
		}
		if d.Category != "" {
			if _, err := io.WriteString(w, `<p style="text-transform:uppercase;font-size:12px;color:#616e7c">`+templ.EscapeString(d.Category)+`</p>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `<h1 style="font-size:20px">`+templ.EscapeString(d.Title)+`</h1>`); err != nil {
			return err
		}
		if d.Message != "" {
			if _, err := io.WriteString(w, `<p>`+templ.EscapeString(d.Message)+`</p>`); err != nil {
				return err
			}
		}
		if d.ActionURL != "" {
			href := templ.EscapeString(string(templ.URL(d.ActionURL)))
			if _, err := io.WriteString(w, `<p><a href="`+href+`">Open</a></p>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

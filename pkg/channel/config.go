package channel

import "time"

// SMSConfig configures the Twilio SMS sender. Without an account SID
// messages are only logged.
type SMSConfig struct {
	AccountSID string        `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string        `env:"TWILIO_AUTH_TOKEN"`
	From       string        `env:"TWILIO_FROM_NUMBER"`
	BaseURL    string        `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com/2010-04-01"`
	Timeout    time.Duration `env:"TWILIO_TIMEOUT" envDefault:"10s"`
}

// PushConfig configures Firebase Cloud Messaging. Without credentials
// push messages are only logged.
type PushConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	CredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON"`
	TopicPrefix     string `env:"PUSH_TOPIC_PREFIX" envDefault:"role-"`
}

// Enabled reports whether FCM credentials are configured.
func (c PushConfig) Enabled() bool {
	return c.CredentialsFile != "" || c.CredentialsJSON != ""
}

// HubConfig sizes the live in-app hub.
type HubConfig struct {
	BufferSize int `env:"LIVE_HUB_BUFFER" envDefault:"32"`
}

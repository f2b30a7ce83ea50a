package model

import (
	"net/url"
	"strings"
)

// AuthType selects where the shared secret is placed on the webhook call.
type AuthType string

const (
	AuthHeader AuthType = "header"
	AuthBody   AuthType = "body"
)

// Valid reports whether t is a known auth placement.
func (t AuthType) Valid() bool {
	return t == AuthHeader || t == AuthBody
}

// Settings is the webhook filter configuration record. The core treats it as
// a read-only snapshot taken when evaluation starts.
type Settings struct {
	WebhookURL         string   `json:"webhook_url" yaml:"webhook_url" validate:"omitempty,webhookurl"`
	TriggeringPatterns string   `json:"triggering_patterns" yaml:"triggering_patterns"`
	AuthType           AuthType `json:"auth_type" yaml:"auth_type" default:"header" validate:"oneof=header body"`
	AuthField          string   `json:"auth_field" yaml:"auth_field" validate:"max=256"`
	SecurityKey        string   `json:"security_key" yaml:"security_key" validate:"max=4096"`

	// MatchCase disables the case-insensitive default for undelimited patterns.
	MatchCase bool `json:"match_case" yaml:"match_case"`
	// Debug routes dispatch failures to the log.
	Debug bool `json:"debug" yaml:"debug"`
}

// Configured reports whether both a webhook URL and at least one non-blank
// pattern line are present. An unconfigured record is a no-op, not an error.
func (s *Settings) Configured() bool {
	return strings.TrimSpace(s.WebhookURL) != "" && strings.TrimSpace(s.TriggeringPatterns) != ""
}

// AuthEnabled reports whether the secret should be injected at all.
func (s *Settings) AuthEnabled() bool {
	return s.AuthField != "" && s.SecurityKey != ""
}

// Email is the subject/body pair inspected for one outgoing message.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

package store

import (
	"strings"
	"unicode"

	"github.com/mailhook/internal/filter"
	"github.com/mailhook/internal/model"
)

// Sanitize normalizes s in place before it is persisted and returns the
// pattern lines that were dropped because they do not compile.
func Sanitize(s *model.Settings) []*filter.InvalidPatternError {
	s.WebhookURL = strings.TrimSpace(s.WebhookURL)
	if !s.AuthType.Valid() {
		s.AuthType = model.AuthHeader
	}
	s.AuthField = textField(s.AuthField)
	s.SecurityKey = textField(s.SecurityKey)

	patterns, dropped := filter.Sanitize(s.TriggeringPatterns)
	s.TriggeringPatterns = patterns
	return dropped
}

// textField strips control characters, collapses whitespace runs and trims.
func textField(v string) string {
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, v)
	return strings.Join(strings.Fields(v), " ")
}

package notify

import (
	"context"
	"log/slog"

	"github.com/mailhook/internal/model"
)

// SettingsLoader supplies the current settings snapshot.
type SettingsLoader interface {
	Load(ctx context.Context) (*model.Settings, error)
}

// MailHook connects the notifier to the outgoing mail pipeline. It reads a
// settings snapshot on every message, so saved changes apply to the next send.
type MailHook struct {
	settings SettingsLoader
	notifier *Notifier
	logger   *slog.Logger
}

func NewMailHook(settings SettingsLoader, notifier *Notifier) *MailHook {
	return &MailHook{settings: settings, notifier: notifier, logger: notifier.logger}
}

// BeforeSend is called by the mailer before a message is transmitted.
func (h *MailHook) BeforeSend(ctx context.Context, subject, body string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("notify: mail hook recovered from panic", "panic", r)
		}
	}()

	s, err := h.settings.Load(ctx)
	if err != nil {
		h.logger.Debug("notify: settings unavailable, skipping", "err", err)
		return
	}
	if s == nil {
		return
	}
	h.notifier.Observe(ctx, *s, model.Email{Subject: subject, Body: body})
}

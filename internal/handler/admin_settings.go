package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mailhook/internal/filter"
	"github.com/mailhook/internal/model"
	"github.com/mailhook/internal/webhook"
)

const maskedSecret = "********"

type settingsStore interface {
	Load(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, settings *model.Settings) ([]*filter.InvalidPatternError, error)
}

type webhookSender interface {
	Send(ctx context.Context, url string, req *webhook.Request) (*webhook.Response, error)
}

// SettingsHandler handles admin settings views and API.
type SettingsHandler struct {
	BaseHandler
	settings  settingsStore
	sender    webhookSender
	templates *template.Template
}

func NewSettingsHandler(logger *slog.Logger, settings settingsStore, sender webhookSender, tmpl *template.Template) *SettingsHandler {
	return &SettingsHandler{BaseHandler: BaseHandler{Logger: logger}, settings: settings, sender: sender, templates: tmpl}
}

// masked returns a copy of s that is safe to hand to a browser.
func masked(s *model.Settings) model.Settings {
	out := *s
	if out.SecurityKey != "" {
		out.SecurityKey = maskedSecret
	}
	return out
}

// Page renders the admin settings form. It holds no settings data; the
// page script loads and saves through the token protected API.
func (h *SettingsHandler) Page(w http.ResponseWriter, r *http.Request) {
	data := struct {
		AuthTypes []model.AuthType
	}{
		AuthTypes: []model.AuthType{model.AuthHeader, model.AuthBody},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "settings.html", data); err != nil {
		slog.Error("settings: template error", "err", err)
	}
}

// Get returns the current settings as JSON (with the security key masked).
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context())
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	err = h.writeJSON(w, http.StatusOK, envelope{"settings": masked(s)}, nil)
	if err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

type updateSettingsRequest struct {
	WebhookURL         string         `json:"webhook_url"`
	TriggeringPatterns string         `json:"triggering_patterns"`
	AuthType           model.AuthType `json:"auth_type"`
	AuthField          string         `json:"auth_field"`
	SecurityKey        string         `json:"security_key"`
	ClearSecurityKey   bool           `json:"clear_security_key"`
	MatchCase          bool           `json:"match_case"`
	Debug              bool           `json:"debug"`
}

// Update saves updated settings. An empty security key keeps the stored one
// unless clear_security_key is set.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in updateSettingsRequest
	if err := h.readJSON(w, r, &in); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	s := &model.Settings{
		WebhookURL:         in.WebhookURL,
		TriggeringPatterns: in.TriggeringPatterns,
		AuthType:           in.AuthType,
		AuthField:          in.AuthField,
		SecurityKey:        in.SecurityKey,
		MatchCase:          in.MatchCase,
		Debug:              in.Debug,
	}

	if s.SecurityKey == "" && !in.ClearSecurityKey {
		current, err := h.settings.Load(r.Context())
		if err != nil {
			h.serverErrorResponse(w, r, err)
			return
		}
		s.SecurityKey = current.SecurityKey
	}

	dropped, err := h.settings.Save(r.Context(), s)
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			h.failedValidationResponse(w, r, verrs)
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	slog.Info("settings: updated", "configured", s.Configured(), "dropped_patterns", len(dropped))

	err = h.writeJSON(w, http.StatusOK, envelope{
		"settings":         masked(s),
		"dropped_patterns": patternIssues(dropped),
	}, nil)
	if err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

type validatePatternsRequest struct {
	TriggeringPatterns string `json:"triggering_patterns"`
	MatchCase          bool   `json:"match_case"`
}

// Validate reports which pattern lines would survive a save, without saving.
func (h *SettingsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var in validatePatternsRequest
	if err := h.readJSON(w, r, &in); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	m := &filter.Matcher{MatchCase: in.MatchCase}
	valid, invalid := m.Check(in.TriggeringPatterns)

	err := h.writeJSON(w, http.StatusOK, envelope{
		"valid":   filter.Lines(valid),
		"invalid": patternIssues(invalid),
	}, nil)
	if err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

// TestWebhook sends a sample notification to the configured webhook URL.
func (h *SettingsHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load(r.Context())
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if s.WebhookURL == "" {
		h.failedValidationResponse(w, r, map[string]string{"webhook_url": "must be set before sending a test"})
		return
	}

	email := model.Email{
		Subject: "Mailhook test notification",
		Body:    "This is a test notification from Mailhook.",
	}
	_, req, err := webhook.Build(email, s)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	resp, err := h.sender.Send(r.Context(), s.WebhookURL, req)
	if err != nil {
		slog.Warn("settings: test webhook failed", "err", err)
		h.errorResponse(w, r, http.StatusBadGateway, err.Error())
		return
	}

	err = h.writeJSON(w, http.StatusOK, envelope{"status_code": resp.StatusCode}, nil)
	if err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

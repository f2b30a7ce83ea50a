package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/mailhook/internal/mailer"
)

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// MailHandler accepts outgoing mail over HTTP and hands it to the mail
// pipeline, which runs the registered hooks before transmission.
type MailHandler struct {
	BaseHandler
	mailer mailSender
}

func NewMailHandler(logger *slog.Logger, m mailSender) *MailHandler {
	return &MailHandler{BaseHandler: BaseHandler{Logger: logger}, mailer: m}
}

// Send transmits one message.
func (h *MailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var msg mailer.Message
	if err := h.readJSON(w, r, &msg); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if errs := validateMessage(&msg); len(errs) > 0 {
		h.failedValidationResponse(w, r, errs)
		return
	}

	if err := h.mailer.Send(r.Context(), msg); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			h.errorResponse(w, r, http.StatusServiceUnavailable, "outgoing mail is not configured")
			return
		}
		slog.Error("mail: send failed", "to", msg.To, "err", err)
		h.errorResponse(w, r, http.StatusBadGateway, "send failed: "+err.Error())
		return
	}

	err := h.writeJSON(w, http.StatusAccepted, envelope{"status": "sent"}, nil)
	if err != nil {
		h.serverErrorResponse(w, r, err)
	}
}

func validateMessage(msg *mailer.Message) map[string]string {
	errs := map[string]string{}

	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			errs["to"] = "contains an invalid address: " + addr
			break
		}
		to = append(to, parsed.Address)
	}
	if len(to) == 0 && errs["to"] == "" {
		errs["to"] = "must contain at least one address"
	}
	msg.To = to

	if strings.ContainsAny(msg.Subject, "\r\n") {
		errs["subject"] = "must be a single line"
	}
	return errs
}

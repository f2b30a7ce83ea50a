package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/mailhook/internal/handler"
	"github.com/mailhook/internal/middleware"
	"github.com/mailhook/internal/web"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// Health check
	r.Get("/api/health", handler.Health(app.db))
	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	settingsHandler := handler.NewSettingsHandler(app.logger, app.settingsStore, app.dispatcher, web.Templates)

	// Protected admin routes
	r.Group(func(r chi.Router) {
		if n := app.config.AdminRatePerMinute; n > 0 {
			r.Use(middleware.RateLimit(rate.Limit(float64(n)/60), max(app.config.AdminRateBurst, 1)))
		}
		r.Use(middleware.RequireAdminToken(app.config.AdminToken))

		r.Get("/api/admin/settings", settingsHandler.Get)
		r.Put("/api/admin/settings", settingsHandler.Update)
		r.Post("/api/admin/settings/validate", settingsHandler.Validate)
		r.Post("/api/admin/settings/test-webhook", settingsHandler.TestWebhook)

		mailHandler := handler.NewMailHandler(app.logger, app.mailer)
		r.Post("/api/mail/send", mailHandler.Send)
	})

	// The form is a static shell; its script sends the token with each API call.
	r.Get("/admin/settings", settingsHandler.Page)

	return r
}

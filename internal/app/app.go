package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/mailhook/internal/config"
	"github.com/mailhook/internal/crypto"
	"github.com/mailhook/internal/db"
	"github.com/mailhook/internal/mailer"
	"github.com/mailhook/internal/notify"
	"github.com/mailhook/internal/store"
	"github.com/mailhook/internal/webhook"
)

type App struct {
	config        *config.Config
	logger        *slog.Logger
	logCloser     io.Closer
	db            *db.DB
	registry      *prometheus.Registry
	settingsStore *store.SettingsStore
	dispatcher    *webhook.Dispatcher
	notifier      *notify.Notifier
	mailer        *mailer.Mailer
}

func (app *App) Close() {
	app.notifier.Wait()
	if err := app.db.Close(); err != nil {
		app.logger.Warn("closing database", "err", err)
	}
	_ = app.logCloser.Close()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, logCloser := newLogger(cfg)

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	crypter, err := crypto.NewFromSecret(cfg.SettingsEncryptionKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("settings crypter: %w", err)
	}
	settingsStore := store.NewSettingsStore(db.New(database), crypter, cfg.SettingsFile)

	// Load once at startup so a broken seed file fails fast.
	s, err := settingsStore.Load(ctx)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !s.Configured() {
		logger.Warn("webhook not configured; outgoing mail will not be inspected until it is")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher := webhook.NewDispatcher(&http.Client{Timeout: webhook.Timeout})
	notifier := notify.New(dispatcher, notify.Options{
		Async:   cfg.WebhookAsync,
		Debug:   cfg.WebhookDebug,
		Metrics: notify.NewMetrics(registry),
		Logger:  logger,
	})

	m := mailer.New(&mailer.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FromAddress: cfg.SMTPFromAddress,
		FromName:    cfg.SMTPFromName,
	})
	m.AddHook(notify.NewMailHook(settingsStore, notifier))

	return &App{
		config:        cfg,
		logger:        logger,
		logCloser:     logCloser,
		db:            database,
		registry:      registry,
		settingsStore: settingsStore,
		dispatcher:    dispatcher,
		notifier:      notifier,
		mailer:        m,
	}, nil
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "async", app.config.WebhookAsync)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		// In-flight async webhooks finish before the process exits.
		app.notifier.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

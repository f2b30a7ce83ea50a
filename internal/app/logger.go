package app

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mailhook/internal/config"
)

// newLogger installs the process-wide slog logger. Output goes to stderr and,
// when LOG_FILE is set, to a size-rotated file as well.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           charmlog.InfoLevel,
		Formatter:       charmlog.JSONFormatter,
	}
	if cfg.IsDevelopment() {
		opts.Level = charmlog.DebugLevel
		opts.Formatter = charmlog.TextFormatter
	}

	logger := slog.New(charmlog.NewWithOptions(out, opts))
	slog.SetDefault(logger)
	return logger, closer
}

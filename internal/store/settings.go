package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailhook/internal/crypto"
	"github.com/mailhook/internal/filter"
	"github.com/mailhook/internal/model"
)

type settingsQueries interface {
	GetSettings(ctx context.Context) ([]byte, error)
	UpsertSettings(ctx context.Context, data []byte) error
}

// SettingsStore persists the webhook filter settings as a single sealed record.
type SettingsStore struct {
	q        settingsQueries
	crypter  *crypto.Crypter
	seedFile string
}

func NewSettingsStore(q settingsQueries, crypter *crypto.Crypter, seedFile string) *SettingsStore {
	return &SettingsStore{q: q, crypter: crypter, seedFile: seedFile}
}

// Load decrypts and returns the current settings. Seeds from the seed file and
// env vars if no row exists. Missing keys take their defaults.
func (s *SettingsStore) Load(ctx context.Context) (*model.Settings, error) {
	data, err := s.q.GetSettings(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		seeded, seedErr := seedSettings(s.seedFile)
		if seedErr != nil {
			return nil, seedErr
		}
		if _, saveErr := s.Save(ctx, seeded); saveErr != nil {
			return nil, saveErr
		}
		slog.Info("settings: seeded", "file", s.seedFile)
		return seeded, nil
	} else if err != nil {
		return nil, err
	}

	plaintext, err := s.crypter.Decrypt(data)
	if err != nil {
		slog.Error("settings: decryption failed", "err", err)
		return nil, err
	}
	var settings model.Settings
	if err := json.Unmarshal(plaintext, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := settings.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save sanitizes, validates, encrypts and persists settings. Pattern lines
// that do not compile are dropped before persisting and returned.
func (s *SettingsStore) Save(ctx context.Context, settings *model.Settings) ([]*filter.InvalidPatternError, error) {
	dropped := Sanitize(settings)
	if err := settings.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return dropped, err
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return dropped, err
	}
	ciphertext, err := s.crypter.Encrypt(raw)
	if err != nil {
		return dropped, err
	}
	if err := s.q.UpsertSettings(ctx, ciphertext); err != nil {
		return dropped, err
	}
	for _, d := range dropped {
		slog.Warn("settings: dropped invalid pattern", "line", d.Line, "pattern", d.Pattern, "err", d.Err)
	}
	return dropped, nil
}

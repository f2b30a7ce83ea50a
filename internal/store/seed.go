package store

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/mailhook/internal/model"
)

// seedSettings builds the first settings record from an optional YAML file,
// overridden by any WEBHOOK_* environment variables that are set.
func seedSettings(path string) (*model.Settings, error) {
	seeded := &model.Settings{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.Unmarshal(raw, seeded); err != nil {
			return nil, fmt.Errorf("parse settings file %s: %w", path, err)
		}
	}

	if err := mergo.Merge(seeded, settingsFromEnv(), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge env settings: %w", err)
	}
	if err := seeded.ApplyDefaults(); err != nil {
		return nil, err
	}
	return seeded, nil
}

func settingsFromEnv() model.Settings {
	return model.Settings{
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		TriggeringPatterns: os.Getenv("WEBHOOK_PATTERNS"),
		AuthType:           model.AuthType(os.Getenv("WEBHOOK_AUTH_TYPE")),
		AuthField:          os.Getenv("WEBHOOK_AUTH_FIELD"),
		SecurityKey:        os.Getenv("WEBHOOK_SECURITY_KEY"),
		MatchCase:          os.Getenv("WEBHOOK_MATCH_CASE") == "true",
	}
}

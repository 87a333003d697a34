package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrSettingsNotFound is returned by Load when no settings file exists yet.
// The caller is expected to Bootstrap a template and halt so the operator
// can fill it in.
var ErrSettingsNotFound = errors.New("settings file not found")

// Hasher turns a raw password into its stored representation.
type Hasher interface {
	Hash(password string) (string, error)
}

// Settings holds the process-wide gateway configuration. It is read-only
// after startup; the only mutation path is Rotate, which runs once before
// the gateway begins serving.
type Settings struct {
	// APIKey is the shared secret required on every request, stored either
	// as plaintext (legacy installs) or as a bcrypt hash.
	APIKey        string `json:"apiKey"`
	CommunityID   string `json:"communityId"`
	Port          uint16 `json:"port"`
	BotToken      string `json:"botToken"`
	AdvertiseURL  string `json:"advertiseUrl"`
	LegacyEnabled bool   `json:"legacyEnabled"`
}

// DefaultSettings returns the template written on first run. Secrets are
// left empty so Validate fails until the operator fills them in.
func DefaultSettings() *Settings {
	return &Settings{
		APIKey:        "",
		CommunityID:   "",
		Port:          37405,
		BotToken:      "",
		AdvertiseURL:  "https://twitch.tv/vertiKarl",
		LegacyEnabled: true,
	}
}

// Load reads settings from path. A missing file yields ErrSettingsNotFound;
// an unreadable or unparseable file, or one failing the shape invariants,
// is an error the caller must treat as fatal (the gateway must not start
// with indeterminate credentials).
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := &Settings{}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}

// Bootstrap writes a fresh settings template to path. When rawPassword is
// non-empty it is hashed into the apiKey field so the operator only has to
// fill in the remaining fields. Startup halts after a bootstrap.
func Bootstrap(path, rawPassword string, hasher Hasher) (*Settings, error) {
	settings := DefaultSettings()

	if rawPassword != "" {
		hash, err := hasher.Hash(rawPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash initial password: %w", err)
		}
		settings.APIKey = hash
	}

	if err := settings.save(path); err != nil {
		return nil, err
	}

	return settings, nil
}

// Rotate replaces the stored apiKey with the hash of rawPassword and
// persists the result. This is the only post-load mutation of Settings and
// runs synchronously before the gateway serves traffic.
func (s *Settings) Rotate(path, rawPassword string, hasher Hasher) error {
	hash, err := hasher.Hash(rawPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	s.APIKey = hash
	return s.save(path)
}

// save writes the settings to disk. Only bootstrap and rotation write.
func (s *Settings) save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks the shape invariants. legacyEnabled needs no check here:
// JSON decoding into a bool already rejects non-boolean values.
func (s *Settings) Validate() error {
	if len(s.APIKey) <= 5 {
		return fmt.Errorf("apiKey must be longer than 5 characters")
	}

	if len(s.CommunityID) <= 5 {
		return fmt.Errorf("communityId must be longer than 5 characters")
	}

	if len(s.BotToken) <= 5 {
		return fmt.Errorf("botToken must be longer than 5 characters")
	}

	if s.Port == 0 {
		return fmt.Errorf("port must be greater than 0")
	}

	return nil
}

// String returns a loggable representation without secrets.
func (s *Settings) String() string {
	return fmt.Sprintf("Settings{Community: %s, Port: %d, Legacy: %v}",
		s.CommunityID, s.Port, s.LegacyEnabled)
}

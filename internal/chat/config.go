package chat

import (
	"encoding/json"
	"errors"
	"net/url"
)

var (
	// ErrConfigMissing means no chat app row exists for the organization.
	ErrConfigMissing = errors.New("chat is not configured for this organization")
	// ErrConfigDisabled means the chat app exists but is switched off.
	ErrConfigDisabled = errors.New("chat is disabled for this organization")
	// ErrConfigInvalid means the stored settings blob cannot drive a completion.
	ErrConfigInvalid = errors.New("chat configuration is invalid")
)

// Config is the per-organization chat connection, parsed from the
// organization's app settings blob.
type Config struct {
	EndpointURL       string `json:"endpoint_url"`
	APIKey            string `json:"api_key"`
	Model             string `json:"model"`
	MaxOutputTokens   int    `json:"max_output_tokens"`
	MaxTotalTokens    *int   `json:"max_total_tokens,omitempty"`
	DisclaimerMessage string `json:"disclaimer_message,omitempty"`
	Enabled           bool   `json:"-"`
}

// ParseConfig decodes an organization's chat settings. The enabled flag comes
// from the app row, not the blob.
func ParseConfig(enabled bool, raw json.RawMessage) (*Config, error) {
	if len(raw) == 0 {
		return nil, ErrConfigMissing
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, ErrConfigInvalid
	}
	cfg.Enabled = enabled
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields required to issue a completion request.
func (c *Config) Validate() error {
	u, err := url.Parse(c.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalid
	}
	if c.Model == "" {
		return ErrConfigInvalid
	}
	if c.MaxOutputTokens <= 0 {
		return ErrConfigInvalid
	}
	if c.MaxTotalTokens != nil && *c.MaxTotalTokens <= 0 {
		return ErrConfigInvalid
	}
	return nil
}

// RedactedConfig is the client-safe view: everything except the API key.
type RedactedConfig struct {
	Model             string `json:"model"`
	MaxOutputTokens   int    `json:"max_output_tokens"`
	MaxTotalTokens    *int   `json:"max_total_tokens,omitempty"`
	DisclaimerMessage string `json:"disclaimer_message,omitempty"`
	Enabled           bool   `json:"enabled"`
	HasAPIKey         bool   `json:"has_api_key"`
}

// Redacted returns the client-safe view of the config.
func (c *Config) Redacted() RedactedConfig {
	return RedactedConfig{
		Model:             c.Model,
		MaxOutputTokens:   c.MaxOutputTokens,
		MaxTotalTokens:    c.MaxTotalTokens,
		DisclaimerMessage: c.DisclaimerMessage,
		Enabled:           c.Enabled,
		HasAPIKey:         c.APIKey != "",
	}
}

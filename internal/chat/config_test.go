package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValid(t *testing.T) {
	raw := json.RawMessage(`{
		"endpoint_url": "https://api.openai.com/v1/chat/completions",
		"api_key": "sk-test",
		"model": "gpt-4o-mini",
		"max_output_tokens": 512,
		"max_total_tokens": 4000,
		"disclaimer_message": "Responses may be inaccurate."
	}`)
	cfg, err := ParseConfig(true, raw)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	require.NotNil(t, cfg.MaxTotalTokens)
	assert.Equal(t, 4000, *cfg.MaxTotalTokens)
}

func TestParseConfigRejectsBadInput(t *testing.T) {
	cases := map[string]json.RawMessage{
		"not json":         json.RawMessage(`{nope`),
		"missing endpoint": json.RawMessage(`{"model":"m","max_output_tokens":10}`),
		"bad scheme":       json.RawMessage(`{"endpoint_url":"ftp://x","model":"m","max_output_tokens":10}`),
		"missing model":    json.RawMessage(`{"endpoint_url":"https://x.test","max_output_tokens":10}`),
		"zero max output":  json.RawMessage(`{"endpoint_url":"https://x.test","model":"m","max_output_tokens":0}`),
		"zero budget":      json.RawMessage(`{"endpoint_url":"https://x.test","model":"m","max_output_tokens":10,"max_total_tokens":0}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(true, raw)
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestParseConfigEmptyBlob(t *testing.T) {
	_, err := ParseConfig(true, nil)
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestRedactedHidesAPIKey(t *testing.T) {
	cfg := &Config{
		EndpointURL:     "https://x.test",
		APIKey:          "sk-secret",
		Model:           "m",
		MaxOutputTokens: 10,
		Enabled:         true,
	}
	view := cfg.Redacted()
	assert.True(t, view.HasAPIKey)
	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 10, EstimateTokens("a string that is thirty-seven chars.."))
}

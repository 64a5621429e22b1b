package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	v.Set(KeyAPIKey, "k")

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "nim_agent", cfg.DefaultAgentID)
	assert.Equal(t, "Nim Assistant", cfg.DefaultAgentName)
	assert.Equal(t, 3, cfg.RecallTopK)
	assert.Equal(t, 3, cfg.ExplicitTopK)
	assert.Equal(t, 4, cfg.HistoryTurns)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("MEMU_API_KEY", "from-env")
	t.Setenv("MEMU_BASE_URL", "http://localhost:8080")
	t.Setenv("MEMU_RECALL_TOP_K", "0")
	t.Setenv("MEMU_TIMEOUT", "2s")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 0, cfg.RecallTopK)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestLoadConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("MEMU_API_KEY", "")

	_, err := LoadConfig(viper.New())
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "api_key", cfgErr.Field)
	assert.Contains(t, err.Error(), "load memory config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.BaseURL = "api.memu.so" }, "base_url"},
		{"negative recall", func(c *Config) { c.RecallTopK = -1 }, "recall_top_k"},
		{"negative explicit", func(c *Config) { c.ExplicitTopK = -2 }, "explicit_top_k"},
		{"zero explicit", func(c *Config) { c.ExplicitTopK = 0 }, "explicit_top_k"},
		{"zero history", func(c *Config) { c.HistoryTurns = 0 }, "history_turns"},
		{"negative history", func(c *Config) { c.HistoryTurns = -1 }, "history_turns"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.APIKey = "k"
			tt.mutate(cfg)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfig_AgentOrDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Agent{ID: "nim_agent", Name: "Nim Assistant"}, cfg.agentOrDefault(Agent{}))
	assert.Equal(t, Agent{ID: "A1", Name: "Nim Assistant"}, cfg.agentOrDefault(Agent{ID: "A1"}))
}

func TestLoadConfig_RejectsZeroHistoryTurns(t *testing.T) {
	v := viper.New()
	v.Set(KeyAPIKey, "k")
	v.Set(KeyHistoryTurns, 0)

	_, err := LoadConfig(v)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "history_turns", cfgErr.Field)
}

func TestConfig_RecallTopKZeroIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.RecallTopK = 0
	assert.NoError(t, cfg.Validate(), "zero recall_top_k is the way to disable recall")
}

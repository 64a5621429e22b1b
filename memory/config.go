package memory

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the public memU endpoint.
const DefaultBaseURL = "https://api.memu.so"

// Config holds process-wide memory configuration.
// Build it once at startup and pass it by pointer; it is read-only afterwards.
type Config struct {
	// APIKey is the memU credential, sent as a bearer token. Required.
	APIKey string

	// BaseURL selects the deployment of the service contract.
	// Default: https://api.memu.so
	BaseURL string

	// DefaultAgentID and DefaultAgentName scope memories when a call does
	// not override them.
	DefaultAgentID   string
	DefaultAgentName string

	// RecallTopK is the number of memories injected before each reply.
	// Default: 3. Zero disables automatic recall.
	RecallTopK int

	// ExplicitTopK is used when the recall tool is called without a count.
	// Default: 3. Must be at least 1.
	ExplicitTopK int

	// HistoryTurns is how many trailing conversation turns form the query.
	// Default: 4. Must be at least 1; use RecallTopK to disable recall.
	HistoryTurns int

	// MaxQueryLength caps the query text, in runes.
	// Default: 2000
	MaxQueryLength int

	// InjectionBudget caps a rendered memory block, in runes.
	// Default: 2000
	InjectionBudget int

	// Timeout bounds every remote call.
	// Default: 15s
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults. APIKey is left empty on purpose:
// it must come from the environment or flags.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		DefaultAgentID:   "nim_agent",
		DefaultAgentName: "Nim Assistant",
		RecallTopK:       3,
		ExplicitTopK:     3,
		HistoryTurns:     4,
		MaxQueryLength:   2000,
		InjectionBudget:  2000,
		Timeout:          15 * time.Second,
	}
}

// Configuration keys understood by LoadConfig. With the MEMU env prefix,
// "api_key" is read from MEMU_API_KEY and so on.
const (
	KeyAPIKey          = "api_key"
	KeyBaseURL         = "base_url"
	KeyAgentID         = "agent_id"
	KeyAgentName       = "agent_name"
	KeyRecallTopK      = "recall_top_k"
	KeyExplicitTopK    = "explicit_top_k"
	KeyHistoryTurns    = "history_turns"
	KeyMaxQueryLength  = "max_query_length"
	KeyInjectionBudget = "injection_budget"
	KeyTimeout         = "timeout"
)

// EnvPrefix is the environment prefix bound by LoadConfig.
const EnvPrefix = "MEMU"

// LoadConfig reads configuration from v, falling back to DefaultConfig for
// unset keys, and validates the result. A nil v reads the environment only.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	def := DefaultConfig()
	v.SetDefault(KeyBaseURL, def.BaseURL)
	v.SetDefault(KeyAgentID, def.DefaultAgentID)
	v.SetDefault(KeyAgentName, def.DefaultAgentName)
	v.SetDefault(KeyRecallTopK, def.RecallTopK)
	v.SetDefault(KeyExplicitTopK, def.ExplicitTopK)
	v.SetDefault(KeyHistoryTurns, def.HistoryTurns)
	v.SetDefault(KeyMaxQueryLength, def.MaxQueryLength)
	v.SetDefault(KeyInjectionBudget, def.InjectionBudget)
	v.SetDefault(KeyTimeout, def.Timeout)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		APIKey:           v.GetString(KeyAPIKey),
		BaseURL:          v.GetString(KeyBaseURL),
		DefaultAgentID:   v.GetString(KeyAgentID),
		DefaultAgentName: v.GetString(KeyAgentName),
		RecallTopK:       v.GetInt(KeyRecallTopK),
		ExplicitTopK:     v.GetInt(KeyExplicitTopK),
		HistoryTurns:     v.GetInt(KeyHistoryTurns),
		MaxQueryLength:   v.GetInt(KeyMaxQueryLength),
		InjectionBudget:  v.GetInt(KeyInjectionBudget),
		Timeout:          v.GetDuration(KeyTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "load memory config")
	}
	return cfg, nil
}

// Validate reports the first problem as a *ConfigurationError.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigurationError{Field: "config", Reason: "is nil"}
	}
	if c.APIKey == "" {
		return &ConfigurationError{Field: "api_key", Reason: "is required"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Field: "base_url", Reason: "must be an absolute http(s) URL"}
	}
	if c.RecallTopK < 0 {
		return &ConfigurationError{Field: "recall_top_k", Reason: "must not be negative"}
	}
	if c.ExplicitTopK < 1 {
		return &ConfigurationError{Field: "explicit_top_k", Reason: "must be at least 1"}
	}
	if c.HistoryTurns < 1 {
		return &ConfigurationError{Field: "history_turns", Reason: "must be at least 1"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must not be negative"}
	}
	return nil
}

// agentOrDefault fills an empty override from the configured defaults.
func (c *Config) agentOrDefault(a Agent) Agent {
	if a.ID == "" {
		a.ID = c.DefaultAgentID
	}
	if a.Name == "" {
		a.Name = c.DefaultAgentName
	}
	return a
}

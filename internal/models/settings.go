package models

// Settings represent the global user settings stored in ~/.arena/settings.yaml.
type Settings struct {
	Version int `yaml:"version"`

	// AgentBinary overrides the path of the agent CLI spawned per model.
	AgentBinary string `yaml:"agent_binary,omitempty"`

	// DefaultTimeoutSec is used when a run does not specify a timeout.
	DefaultTimeoutSec int `yaml:"default_timeout_sec,omitempty"`

	// MaxAgents can lower (never raise) the built-in session agent limit.
	MaxAgents int `yaml:"max_agents,omitempty"`

	// Models holds per-model credential overrides, keyed by raw model ID.
	Models map[string]ModelOverride `yaml:"models,omitempty"`
}

// ModelOverride carries per-model credential overrides injected into the
// spawned agent's environment.
type ModelOverride struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version:           1,
		DefaultTimeoutSec: 1800,
	}
}

package config

import "time"

// Config is the fully-resolved, validated configuration for a deepresearch
// process: provider credentials and model selection, the tunables in
// SPEC_FULL.md section 6, and the handful of infrastructure paths needed to
// start the HTTP shell and the workspace root.
type Config struct {
	configDir string

	HTTPPort     int    `yaml:"http_port"`
	WorkspaceRoot string `yaml:"workspace_root"`

	Providers Providers `yaml:"providers"`
	Models    Models    `yaml:"models"`
	Limits    Limits    `yaml:"limits"`
}

// Providers holds API credentials for the three external capability
// interfaces. Values are resolved from YAML after ${VAR} expansion, so the
// checked-in config can reference environment variables without committing
// secrets.
type Providers struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	SearchAPIKey    string `yaml:"search_api_key"`
	DaytonaAPIKey   string `yaml:"daytona_api_key"`
	DaytonaAPIURL   string `yaml:"daytona_api_url"`
}

// Models selects which model backs each of the five distinct LLM roles a
// session uses. A single provider key may back all five; they are kept
// separate because a deployment may want a cheaper model for summarisation
// than for report writing.
type Models struct {
	Orchestrator string `yaml:"orchestrator"`
	Planner      string `yaml:"planner"`
	Summarizer   string `yaml:"summarizer"`
	ReportWriter string `yaml:"report_writer"`
	SubAgent     string `yaml:"sub_agent"`
}

// Limits holds every tunable named in SPEC_FULL.md section 6, each with the
// default specified there.
type Limits struct {
	MinSearchSpacingMs      int           `yaml:"min_search_spacing_ms"`
	MaxAgents               int           `yaml:"max_agents"`
	OrchestratorStepCap     int           `yaml:"orchestrator_step_cap"`
	SubAgentStepCap         int           `yaml:"sub_agent_step_cap"`
	SubAgentMaxAttempts     int           `yaml:"sub_agent_max_attempts"`
	SubAgentMinResultChars  int           `yaml:"sub_agent_min_result_chars"`
	WaitForAgentsTimeoutSec int           `yaml:"wait_for_agents_timeout_sec"`
	SandboxTimeoutMs        int           `yaml:"sandbox_timeout_ms"`
	AbortGracePeriodMs      int           `yaml:"abort_grace_period_ms"`
	SessionCleanupDelayMs   int           `yaml:"session_cleanup_delay_ms"`
	SessionRetention        time.Duration `yaml:"session_retention"`
	SubscriberBufferSize    int           `yaml:"subscriber_buffer_size"`

	WebSearchBudget      int `yaml:"web_search_budget"`
	FileBudget           int `yaml:"file_budget"`
	CodeInterpreterBudget int `yaml:"code_interpreter_budget"`
	ViewImageBudget      int `yaml:"view_image_budget"`
	MaxConsecutiveToolFailures int `yaml:"max_consecutive_tool_failures"`
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Defaults returns a Config populated with every SPEC_FULL.md section 6
// default. Load merges a user's YAML on top of this with mergo, so a config
// file only needs to set the fields it wants to override.
func Defaults() *Config {
	return &Config{
		HTTPPort:      8080,
		WorkspaceRoot: "./reports",
		Models: Models{
			Orchestrator: "claude-sonnet-4-5",
			Planner:      "claude-sonnet-4-5",
			Summarizer:   "claude-haiku-4-5",
			ReportWriter: "claude-sonnet-4-5",
			SubAgent:     "claude-sonnet-4-5",
		},
		Limits: Limits{
			MinSearchSpacingMs:         350,
			MaxAgents:                  10,
			OrchestratorStepCap:        100,
			SubAgentStepCap:            25,
			SubAgentMaxAttempts:        3,
			SubAgentMinResultChars:     100,
			WaitForAgentsTimeoutSec:    180,
			SandboxTimeoutMs:           30_000,
			AbortGracePeriodMs:         5_000,
			SessionCleanupDelayMs:      600_000,
			SessionRetention:           24 * time.Hour,
			SubscriberBufferSize:       256,
			WebSearchBudget:            20,
			FileBudget:                 15,
			CodeInterpreterBudget:      5,
			ViewImageBudget:            5,
			MaxConsecutiveToolFailures: 3,
		},
	}
}

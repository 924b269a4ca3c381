// Package config loads the Gaia runtime configuration and the named policy
// documents (safe_commands, blocked_commands, security_tiers, thresholds)
// that drive classification and policy decisions.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full Gaia runtime configuration.
type Config struct {
	Project    ProjectConfig    `mapstructure:"project"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// ProjectConfig contains project-level settings.
type ProjectConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// WorkflowConfig contains workflow-level settings.
type WorkflowConfig struct {
	ApprovalTTL       string `mapstructure:"approval_ttl"`
	SessionResumeMins int    `mapstructure:"session_resume_mins"`
	MaxSessionErrors  int    `mapstructure:"max_session_errors"`
}

// ExecutionConfig contains Layer-E execution settings.
type ExecutionConfig struct {
	DefaultTimeout    string   `mapstructure:"default_timeout"`
	DiscoveryDepth    int      `mapstructure:"discovery_depth"`
	TransientPatterns []string `mapstructure:"transient_patterns"`
}

// MemoryConfig contains episodic memory settings.
type MemoryConfig struct {
	MaxIndexEntries int      `mapstructure:"max_index_entries"`
	RetentionDays   int      `mapstructure:"retention_days"`
	StopWords       []string `mapstructure:"stop_words"`
}

// ThresholdsConfig contains scoring thresholds.
type ThresholdsConfig struct {
	Clarification         int     `mapstructure:"clarification"`
	ReadOnlyClarification int     `mapstructure:"read_only_clarification"`
	RoutingConfidence     float64 `mapstructure:"routing_confidence"`
	UpdateConfidence      float64 `mapstructure:"update_confidence"`
	SearchMinScore        float64 `mapstructure:"search_min_score"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Workflow.ApprovalTTL == "" {
		cfg.Workflow.ApprovalTTL = "15m"
	}
	if cfg.Workflow.SessionResumeMins == 0 {
		cfg.Workflow.SessionResumeMins = 30
	}
	if cfg.Workflow.MaxSessionErrors == 0 {
		cfg.Workflow.MaxSessionErrors = 3
	}

	if cfg.Execution.DefaultTimeout == "" {
		cfg.Execution.DefaultTimeout = "120s"
	}
	if cfg.Execution.DiscoveryDepth == 0 {
		cfg.Execution.DiscoveryDepth = 3
	}
	if len(cfg.Execution.TransientPatterns) == 0 {
		cfg.Execution.TransientPatterns = DefaultTransientPatterns()
	}

	if cfg.Memory.MaxIndexEntries == 0 {
		cfg.Memory.MaxIndexEntries = 1000
	}
	if cfg.Memory.RetentionDays == 0 {
		cfg.Memory.RetentionDays = 180
	}
	if len(cfg.Memory.StopWords) == 0 {
		cfg.Memory.StopWords = DefaultStopWords()
	}

	if cfg.Thresholds.Clarification == 0 {
		cfg.Thresholds.Clarification = 30
	}
	if cfg.Thresholds.ReadOnlyClarification == 0 {
		cfg.Thresholds.ReadOnlyClarification = 50
	}
	if cfg.Thresholds.RoutingConfidence == 0 {
		cfg.Thresholds.RoutingConfidence = 0.5
	}
	if cfg.Thresholds.UpdateConfidence == 0 {
		cfg.Thresholds.UpdateConfidence = 0.7
	}
	if cfg.Thresholds.SearchMinScore == 0 {
		cfg.Thresholds.SearchMinScore = 0.1
	}
}

// ApprovalTTL returns the parsed approval token lifetime.
func (c *Config) ApprovalTTL() time.Duration {
	d, err := time.ParseDuration(c.Workflow.ApprovalTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// DefaultExecutionTimeout returns the parsed Layer-E default timeout.
func (c *Config) DefaultExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// DefaultTransientPatterns returns the stderr substrings that mark a failed
// command attempt as retryable.
func DefaultTransientPatterns() []string {
	return []string{
		"timeout",
		"temporarily unavailable",
		"rate limit",
		"connection refused",
		"connection reset",
		"503",
		"429",
	}
}

// DefaultStopWords returns the words dropped during keyword extraction.
func DefaultStopWords() []string {
	return []string{
		"the", "and", "for", "with", "from", "into", "that", "this",
		"have", "has", "are", "was", "will", "can", "could", "should",
		"please", "all", "any", "but", "not", "you", "your", "our",
		"los", "las", "del", "por", "para", "una", "uno", "con", "que",
	}
}

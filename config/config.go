// Package config provides configuration loading and management for the
// grant council service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Council  CouncilConfig  `yaml:"council"`
	Learning LearningConfig `yaml:"learning"`
	Storage  StorageConfig  `yaml:"storage"`
	API      APIConfig      `yaml:"api"`
}

// LLMConfig configures the inference gateway.
type LLMConfig struct {
	// Endpoint is the chat completions URL (OpenRouter-compatible).
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// Models maps reviewer persona IDs to model identifiers. Personas
	// not listed use DefaultModel.
	Models map[string]string `yaml:"models"`
	// DefaultModel is used for personas without an explicit model and
	// for extraction and reflection calls.
	DefaultModel string `yaml:"default_model"`

	// Per-call timeouts. Evaluation calls get the longest budget,
	// deliberation less, extraction and reflection the least.
	EvaluationTimeout   time.Duration `yaml:"evaluation_timeout"`
	DeliberationTimeout time.Duration `yaml:"deliberation_timeout"`
	ExtractionTimeout   time.Duration `yaml:"extraction_timeout"`
	ReflectionTimeout   time.Duration `yaml:"reflection_timeout"`
}

// CouncilConfig configures consensus thresholds and deliberation.
type CouncilConfig struct {
	// AutoApproveThreshold is the consensus strength required for
	// unanimous auto-approval (0-1).
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	// AutoRejectThreshold is the consensus strength required for
	// unanimous auto-rejection (0-1).
	AutoRejectThreshold float64 `yaml:"auto_reject_threshold"`
	// HumanReviewAmount forces human review at or above this requested
	// amount regardless of consensus.
	HumanReviewAmount float64 `yaml:"human_review_amount"`
	// DeliberationRounds is the number of deliberation rounds.
	DeliberationRounds int `yaml:"deliberation_rounds"`
}

// LearningConfig configures the observation lifecycle.
type LearningConfig struct {
	// MinEvidence is the evidence count required to promote a draft
	// observation to reviewed.
	MinEvidence int `yaml:"min_evidence"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "nats".
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL when Backend is "nats".
	NATSURL string `yaml:"nats_url"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Endpoint:            "https://openrouter.ai/api/v1/chat/completions",
			APIKeyEnv:           "OPENROUTER_API_KEY",
			DefaultModel:        "openai/gpt-4o-mini",
			EvaluationTimeout:   120 * time.Second,
			DeliberationTimeout: 90 * time.Second,
			ExtractionTimeout:   60 * time.Second,
			ReflectionTimeout:   60 * time.Second,
		},
		Council: CouncilConfig{
			AutoApproveThreshold: 0.85,
			AutoRejectThreshold:  0.85,
			HumanReviewAmount:    50000,
			DeliberationRounds:   1,
		},
		Learning: LearningConfig{
			MinEvidence: 5,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.endpoint is required")
	}
	if c.LLM.DefaultModel == "" {
		return fmt.Errorf("llm.default_model is required")
	}
	if c.Council.AutoApproveThreshold < 0 || c.Council.AutoApproveThreshold > 1 {
		return fmt.Errorf("council.auto_approve_threshold must be between 0 and 1")
	}
	if c.Council.AutoRejectThreshold < 0 || c.Council.AutoRejectThreshold > 1 {
		return fmt.Errorf("council.auto_reject_threshold must be between 0 and 1")
	}
	if c.Council.HumanReviewAmount < 0 {
		return fmt.Errorf("council.human_review_amount must not be negative")
	}
	if c.Council.DeliberationRounds < 0 {
		return fmt.Errorf("council.deliberation_rounds must not be negative")
	}
	if c.Learning.MinEvidence < 1 {
		return fmt.Errorf("learning.min_evidence must be at least 1")
	}
	switch c.Storage.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("storage.backend must be \"memory\" or \"nats\"")
	}
	if c.Storage.Backend == "nats" && c.Storage.NATSURL == "" {
		return fmt.Errorf("storage.nats_url is required when storage.backend is \"nats\"")
	}
	return nil
}

// APIKey resolves the gateway API key from the environment.
func (c *LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// ModelFor returns the model identifier for a reviewer persona.
func (c *LLMConfig) ModelFor(personaID string) string {
	if m, ok := c.Models[personaID]; ok && m != "" {
		return m
	}
	return c.DefaultModel
}

// LoadFromFile loads configuration from a YAML file, applying defaults
// for unset fields.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence
// for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.LLM.APIKeyEnv != "" {
		c.LLM.APIKeyEnv = other.LLM.APIKeyEnv
	}
	if other.LLM.DefaultModel != "" {
		c.LLM.DefaultModel = other.LLM.DefaultModel
	}
	if len(other.LLM.Models) > 0 {
		if c.LLM.Models == nil {
			c.LLM.Models = make(map[string]string, len(other.LLM.Models))
		}
		for k, v := range other.LLM.Models {
			c.LLM.Models[k] = v
		}
	}
	if other.LLM.EvaluationTimeout != 0 {
		c.LLM.EvaluationTimeout = other.LLM.EvaluationTimeout
	}
	if other.LLM.DeliberationTimeout != 0 {
		c.LLM.DeliberationTimeout = other.LLM.DeliberationTimeout
	}
	if other.LLM.ExtractionTimeout != 0 {
		c.LLM.ExtractionTimeout = other.LLM.ExtractionTimeout
	}
	if other.LLM.ReflectionTimeout != 0 {
		c.LLM.ReflectionTimeout = other.LLM.ReflectionTimeout
	}

	if other.Council.AutoApproveThreshold != 0 {
		c.Council.AutoApproveThreshold = other.Council.AutoApproveThreshold
	}
	if other.Council.AutoRejectThreshold != 0 {
		c.Council.AutoRejectThreshold = other.Council.AutoRejectThreshold
	}
	if other.Council.HumanReviewAmount != 0 {
		c.Council.HumanReviewAmount = other.Council.HumanReviewAmount
	}
	if other.Council.DeliberationRounds != 0 {
		c.Council.DeliberationRounds = other.Council.DeliberationRounds
	}

	if other.Learning.MinEvidence != 0 {
		c.Learning.MinEvidence = other.Learning.MinEvidence
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.NATSURL != "" {
		c.Storage.NATSURL = other.Storage.NATSURL
	}

	if other.API.Addr != "" {
		c.API.Addr = other.API.Addr
	}
}

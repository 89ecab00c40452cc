package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, 0.85, cfg.Council.AutoApproveThreshold)
	assert.Equal(t, float64(50000), cfg.Council.HumanReviewAmount)
	assert.Equal(t, 120*time.Second, cfg.LLM.EvaluationTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing endpoint", func(c *config.Config) { c.LLM.Endpoint = "" }},
		{"missing default model", func(c *config.Config) { c.LLM.DefaultModel = "" }},
		{"approve threshold above 1", func(c *config.Config) { c.Council.AutoApproveThreshold = 1.5 }},
		{"negative reject threshold", func(c *config.Config) { c.Council.AutoRejectThreshold = -0.1 }},
		{"negative review amount", func(c *config.Config) { c.Council.HumanReviewAmount = -1 }},
		{"negative deliberation rounds", func(c *config.Config) { c.Council.DeliberationRounds = -1 }},
		{"zero min evidence", func(c *config.Config) { c.Learning.MinEvidence = 0 }},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "postgres" }},
		{"nats backend without url", func(c *config.Config) { c.Storage.Backend = "nats" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	content := `
llm:
  default_model: anthropic/claude-sonnet-4
council:
  human_review_amount: 25000
storage:
  backend: nats
  nats_url: nats://localhost:4222
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.LLM.DefaultModel)
	assert.Equal(t, float64(25000), cfg.Council.HumanReviewAmount)
	assert.Equal(t, "nats", cfg.Storage.Backend)

	// Unset fields keep defaults.
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.LLM.Endpoint)
	assert.Equal(t, 0.85, cfg.Council.AutoApproveThreshold)
	assert.Equal(t, 5, cfg.Learning.MinEvidence)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := config.LoadFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0o644))

	_, err := config.LoadFromFile(path)
	assert.Error(t, err)
}

func TestMergeOverridesNonZeroValues(t *testing.T) {
	base := config.DefaultConfig()
	base.Merge(&config.Config{
		LLM: config.LLMConfig{
			DefaultModel: "anthropic/claude-sonnet-4",
			Models:       map[string]string{"technical": "openai/gpt-4o"},
		},
		Council: config.CouncilConfig{HumanReviewAmount: 10000},
		API:     config.APIConfig{Addr: ":9090"},
	})

	assert.Equal(t, "anthropic/claude-sonnet-4", base.LLM.DefaultModel)
	assert.Equal(t, "openai/gpt-4o", base.LLM.Models["technical"])
	assert.Equal(t, float64(10000), base.Council.HumanReviewAmount)
	assert.Equal(t, ":9090", base.API.Addr)

	// Zero values in the overlay leave the base untouched.
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", base.LLM.Endpoint)
	assert.Equal(t, 0.85, base.Council.AutoApproveThreshold)
}

func TestMergeNil(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Merge(nil)
	assert.NoError(t, cfg.Validate())
}

func TestModelFor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Models = map[string]string{"budget": "openai/gpt-4o"}

	assert.Equal(t, "openai/gpt-4o", cfg.LLM.ModelFor("budget"))
	assert.Equal(t, cfg.LLM.DefaultModel, cfg.LLM.ModelFor("technical"))
}

func TestAPIKeyFromEnv(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKeyEnv = "COUNCIL_TEST_API_KEY"
	t.Setenv("COUNCIL_TEST_API_KEY", "sk-test")

	assert.Equal(t, "sk-test", cfg.LLM.APIKey())

	cfg.LLM.APIKeyEnv = ""
	assert.Empty(t, cfg.LLM.APIKey())
}

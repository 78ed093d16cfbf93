package ai

import (
	"testing"

	"github.com/hyphora/hyphora/internal/profile"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero seed count", func(c *Config) { c.Seed.SeedCount = 0 }},
		{"zero per method k", func(c *Config) { c.Seed.PerMethodK = 0 }},
		{"zero rrf k", func(c *Config) { c.Seed.RRFK = 0 }},
		{"negative fusion weight", func(c *Config) { c.Seed.WeightVec = -1 }},
		{"negative max hops", func(c *Config) { c.Expand.MaxHops = -1 }},
		{"zero max nodes", func(c *Config) { c.Expand.MaxNodes = 0 }},
		{"damping too high", func(c *Config) { c.Authority.Damping = 1 }},
		{"damping too low", func(c *Config) { c.Authority.Damping = 0 }},
		{"zero epsilon", func(c *Config) { c.Authority.Epsilon = 0 }},
		{"zero iterations", func(c *Config) { c.Authority.MaxIterations = 0 }},
		{"zero budget", func(c *Config) { c.Select.TokenBudget = 0 }},
		{"zero min nodes", func(c *Config) { c.Select.MinNodes = 0 }},
		{"max below min", func(c *Config) { c.Select.MinNodes = 5; c.Select.MaxNodes = 2 }},
		{"unknown policy", func(c *Config) { c.Select.Policy = "random" }},
		{"bad mmr lambda", func(c *Config) { c.Select.Policy = SelectionPolicyMMR; c.Select.MMRLambda = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestNewEmbeddingConfigFromProfile(t *testing.T) {
	p := &profile.Profile{
		EmbeddingProvider:   "openai",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingAPIKey:     "sk-test",
		EmbeddingBaseURL:    "https://api.openai.com/v1",
		EmbeddingDimensions: 768,
	}
	cfg := NewEmbeddingConfigFromProfile(p)
	if cfg == nil {
		t.Fatal("configured provider should yield an embedding config")
	}
	if cfg.Model != "text-embedding-3-small" || cfg.Dimensions != 768 {
		t.Errorf("config = %+v", cfg)
	}

	// No API key and a hosted provider means embeddings are off.
	if got := NewEmbeddingConfigFromProfile(&profile.Profile{EmbeddingProvider: "openai"}); got != nil {
		t.Errorf("unconfigured provider should yield nil, got %+v", got)
	}

	// Ollama is local and needs no key.
	if got := NewEmbeddingConfigFromProfile(&profile.Profile{EmbeddingProvider: "ollama"}); got == nil {
		t.Errorf("ollama should be enabled without an API key")
	}
}

package ai

import (
	"errors"

	"github.com/hyphora/hyphora/internal/profile"
)

// Config holds all retrieval pipeline tuning knobs. Defaults work out of the
// box; deployments override selected fields through a YAML file loaded by
// configloader.
type Config struct {
	Seed      SeedConfig      `yaml:"seed"`
	Expand    ExpandConfig    `yaml:"expand"`
	Features  FeatureConfig   `yaml:"features"`
	Authority AuthorityConfig `yaml:"authority"`
	Select    SelectConfig    `yaml:"select"`
}

// SeedConfig tunes seed selection and reciprocal rank fusion.
type SeedConfig struct {
	// SeedCount is the number of fused candidates kept as seeds.
	SeedCount int `yaml:"seed_count"`
	// PerMethodK is how many results each search method contributes.
	PerMethodK int `yaml:"per_method_k"`
	// RRFK is the rank smoothing constant in the fusion formula.
	RRFK      float64 `yaml:"rrf_k"`
	WeightVec float64 `yaml:"weight_vec"`
	WeightFTS float64 `yaml:"weight_fts"`
}

// ExpandConfig bounds the subgraph expansion.
type ExpandConfig struct {
	MaxHops  int `yaml:"max_hops"`
	MaxNodes int `yaml:"max_nodes"`
}

// FeatureConfig holds base-score feature weights. The weights sum to 1 by
// convention, not enforcement.
type FeatureConfig struct {
	WeightSemantic float64 `yaml:"weight_semantic"`
	WeightText     float64 `yaml:"weight_text"`
	WeightHop      float64 `yaml:"weight_hop"`
	WeightRecency  float64 `yaml:"weight_recency"`
	// RecencyHalfLifeDays is the decay constant for the recency feature.
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
}

// AuthorityConfig tunes the personalized propagation rerank.
type AuthorityConfig struct {
	Damping       float64 `yaml:"damping"`
	Epsilon       float64 `yaml:"epsilon"`
	MaxIterations int     `yaml:"max_iterations"`
	// WeightBase and WeightAuthority combine base and authority scores into
	// the final score.
	WeightBase      float64 `yaml:"weight_base"`
	WeightAuthority float64 `yaml:"weight_authority"`
}

// SelectionPolicy chooses the budget-constrained selection strategy.
type SelectionPolicy string

const (
	// SelectionPolicyGreedy walks candidates in final-score order and packs
	// whatever fits the remaining budget.
	SelectionPolicyGreedy SelectionPolicy = "greedy"
	// SelectionPolicyMMR additionally penalizes redundancy against already
	// selected nodes using embedding similarity.
	SelectionPolicyMMR SelectionPolicy = "mmr"
)

// SelectConfig tunes budget-constrained pruning.
type SelectConfig struct {
	// TokenBudget is the maximum total rendered size in tokens.
	TokenBudget int `yaml:"token_budget"`
	MinNodes    int `yaml:"min_nodes"`
	MaxNodes    int `yaml:"max_nodes"`

	Policy SelectionPolicy `yaml:"policy"`
	// MMRLambda balances relevance against redundancy, only used by the mmr
	// policy.
	MMRLambda float64 `yaml:"mmr_lambda"`
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() *Config {
	return &Config{
		Seed: SeedConfig{
			SeedCount:  8,
			PerMethodK: 20,
			RRFK:       60,
			WeightVec:  1.0,
			WeightFTS:  1.0,
		},
		Expand: ExpandConfig{
			MaxHops:  2,
			MaxNodes: 64,
		},
		Features: FeatureConfig{
			WeightSemantic:      0.4,
			WeightText:          0.2,
			WeightHop:           0.2,
			WeightRecency:       0.2,
			RecencyHalfLifeDays: 30,
		},
		Authority: AuthorityConfig{
			Damping:         0.85,
			Epsilon:         1e-6,
			MaxIterations:   50,
			WeightBase:      0.7,
			WeightAuthority: 0.3,
		},
		Select: SelectConfig{
			TokenBudget: 2048,
			MinNodes:    1,
			MaxNodes:    10,
			Policy:      SelectionPolicyGreedy,
			MMRLambda:   0.635,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Seed.SeedCount <= 0 {
		return errors.New("seed_count must be positive")
	}
	if c.Seed.PerMethodK <= 0 {
		return errors.New("per_method_k must be positive")
	}
	if c.Seed.RRFK <= 0 {
		return errors.New("rrf_k must be positive")
	}
	if c.Seed.WeightVec < 0 || c.Seed.WeightFTS < 0 {
		return errors.New("fusion weights must be non-negative")
	}
	if c.Expand.MaxHops < 0 {
		return errors.New("max_hops must be non-negative")
	}
	if c.Expand.MaxNodes <= 0 {
		return errors.New("max_nodes must be positive")
	}
	if c.Authority.Damping <= 0 || c.Authority.Damping >= 1 {
		return errors.New("damping must be in (0, 1)")
	}
	if c.Authority.Epsilon <= 0 {
		return errors.New("epsilon must be positive")
	}
	if c.Authority.MaxIterations <= 0 {
		return errors.New("max_iterations must be positive")
	}
	if c.Select.TokenBudget <= 0 {
		return errors.New("token_budget must be positive")
	}
	if c.Select.MinNodes < 1 {
		return errors.New("min_nodes must be at least 1")
	}
	if c.Select.MaxNodes > 0 && c.Select.MaxNodes < c.Select.MinNodes {
		return errors.New("max_nodes must be >= min_nodes")
	}
	switch c.Select.Policy {
	case SelectionPolicyGreedy, SelectionPolicyMMR:
	default:
		return errors.New("unknown selection policy")
	}
	if c.Select.Policy == SelectionPolicyMMR && (c.Select.MMRLambda <= 0 || c.Select.MMRLambda > 1) {
		return errors.New("mmr_lambda must be in (0, 1]")
	}
	return nil
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbeddingConfigFromProfile creates embedding config from profile.
// Returns nil when no provider is configured, which downstream code treats as
// degraded text-only mode.
func NewEmbeddingConfigFromProfile(p *profile.Profile) *EmbeddingConfig {
	if !p.IsEmbeddingEnabled() {
		return nil
	}
	return &EmbeddingConfig{
		Provider:   p.EmbeddingProvider,
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	}
}

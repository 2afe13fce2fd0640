package cognitive

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MABConfig mirrors the mab.* configuration options.
type MABConfig struct {
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
	MinSamples           int     `yaml:"min_samples"`
}

// GoldenConfig mirrors the golden.* configuration options.
type GoldenConfig struct {
	SuccessRateThreshold float64 `yaml:"success_rate_threshold"`
	MinSamplesRequired   int     `yaml:"min_samples_required"`
	StabilityWindow      int     `yaml:"stability_window"`
	MaxTemplates         int     `yaml:"max_templates"`
}

// TrialConfig mirrors the trial.* configuration options.
type TrialConfig struct {
	ExplorationBoostRounds   int     `yaml:"exploration_boost_rounds"`
	LearnedPathBonus         float64 `yaml:"learned_path_bonus"`
	CullingThreshold         float64 `yaml:"culling_threshold"`
	CullingMinSamples        int     `yaml:"culling_min_samples"`
	ConsecutiveFailuresLimit int     `yaml:"consecutive_failures_limit"`
	MaxCulledHistory         int     `yaml:"max_culled_history"`
	TrialDurationSeconds     int     `yaml:"trial_duration_seconds"`
	WatchDurationSeconds     int     `yaml:"watch_duration_seconds"`
}

// LLMConfig mirrors the llm.* configuration options.
type LLMConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestInterval   time.Duration `yaml:"request_interval"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	PrimaryProvider   string        `yaml:"primary_provider"`
	FallbackProviders []string      `yaml:"fallback_providers"`
	HealthProbeEvery  time.Duration `yaml:"health_probe_every"`
	RedisAddr         string        `yaml:"redis_addr"`
}

// VerifierConfig mirrors the verifier.* configuration options.
type VerifierConfig struct {
	FeasibleCutoff float64       `yaml:"feasibility_feasible_cutoff"`
	Timeout        time.Duration `yaml:"timeout"`
}

// PathGeneratorConfig mirrors the path_generator.* configuration options.
type PathGeneratorConfig struct {
	// UseUUIDInstanceIDs swaps the default monotonic-counter+timestamp
	// instance_id scheme for a github.com/google/uuid-generated one. The
	// monotonic scheme sorts lexically by generation order within a process;
	// UUIDs don't, but they're collision-safe across processes sharing a
	// persisted state file.
	UseUUIDInstanceIDs bool `yaml:"use_uuid_instance_ids"`
}

// Config is the full set of recognized options for a Core.
type Config struct {
	MAB           MABConfig           `yaml:"mab"`
	Golden        GoldenConfig        `yaml:"golden"`
	Trial         TrialConfig         `yaml:"trial"`
	LLM           LLMConfig           `yaml:"llm"`
	Verifier      VerifierConfig      `yaml:"verifier"`
	PathGenerator PathGeneratorConfig `yaml:"path_generator"`

	MaxPaths int `yaml:"max_paths"`

	StatePath string `yaml:"state_path"`
}

// DefaultConfig returns a Config with every spec-mandated default applied.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.MAB.ConvergenceThreshold == 0 {
		c.MAB.ConvergenceThreshold = 0.05
	}
	if c.MAB.MinSamples == 0 {
		c.MAB.MinSamples = 10
	}

	if c.Golden.SuccessRateThreshold == 0 {
		c.Golden.SuccessRateThreshold = 0.90
	}
	if c.Golden.MinSamplesRequired == 0 {
		c.Golden.MinSamplesRequired = 20
	}
	if c.Golden.StabilityWindow == 0 {
		c.Golden.StabilityWindow = 10
	}
	if c.Golden.MaxTemplates == 0 {
		c.Golden.MaxTemplates = 50
	}

	if c.Trial.ExplorationBoostRounds == 0 {
		c.Trial.ExplorationBoostRounds = 10
	}
	if c.Trial.LearnedPathBonus == 0 {
		c.Trial.LearnedPathBonus = 0.15
	}
	if c.Trial.CullingThreshold == 0 {
		c.Trial.CullingThreshold = 0.25
	}
	if c.Trial.CullingMinSamples == 0 {
		c.Trial.CullingMinSamples = 20
	}
	if c.Trial.ConsecutiveFailuresLimit == 0 {
		c.Trial.ConsecutiveFailuresLimit = 10
	}
	if c.Trial.MaxCulledHistory == 0 {
		c.Trial.MaxCulledHistory = 100
	}
	if c.Trial.TrialDurationSeconds == 0 {
		c.Trial.TrialDurationSeconds = 3600
	}
	if c.Trial.WatchDurationSeconds == 0 {
		c.Trial.WatchDurationSeconds = 1800
	}

	if c.LLM.ConnectTimeout == 0 {
		c.LLM.ConnectTimeout = 30 * time.Second
	}
	if c.LLM.ReadTimeout == 0 {
		c.LLM.ReadTimeout = 180 * time.Second
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.RequestInterval == 0 {
		c.LLM.RequestInterval = time.Second
	}
	if c.LLM.CacheTTL == 0 {
		c.LLM.CacheTTL = 300 * time.Second
	}
	if c.LLM.PrimaryProvider == "" {
		c.LLM.PrimaryProvider = "auto"
	}
	if c.LLM.HealthProbeEvery == 0 {
		c.LLM.HealthProbeEvery = 300 * time.Second
	}

	if c.Verifier.FeasibleCutoff == 0 {
		c.Verifier.FeasibleCutoff = 0.3
	}
	if c.Verifier.Timeout == 0 {
		c.Verifier.Timeout = 60 * time.Second
	}

	if c.MaxPaths == 0 {
		c.MaxPaths = 6
	}
}

// LoadConfig reads a YAML config file, applying defaults for any option it
// omits. A missing file is not an error: it just means "use all defaults",
// matching pkg/config.LoadConfig's permissive behavior.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

package model

import "time"

// Config is the full runtime configuration. Loaded through viper with the
// hierarchy: CLI flags > PULSE_* env vars > config file > defaults.
type Config struct {
	Thresholds  ThresholdConfig  `yaml:"thresholds" mapstructure:"thresholds"`
	Trust       TrustConfig      `yaml:"trust" mapstructure:"trust"`
	LLM         LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Store       StoreConfig      `yaml:"store" mapstructure:"store"`
	Sweep       SweepConfig      `yaml:"sweep" mapstructure:"sweep"`
	Output      OutputConfig     `yaml:"output" mapstructure:"output"`
}

// ThresholdConfig holds the calibration knobs of the verification subsystem.
// The corroboration constants are empirical heuristics, kept tunable so they
// can be validated against labeled data rather than baked in.
type ThresholdConfig struct {
	// MatchThreshold is the minimum similarity for a stored event to count
	// as a corroborating match.
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`

	// MatchWindowDays bounds the date window searched for matches (± days).
	MatchWindowDays int `yaml:"match_window_days" mapstructure:"match_window_days"`

	// BoostFactor damps each match's contribution: similarity * trust * factor.
	BoostFactor float64 `yaml:"boost_factor" mapstructure:"boost_factor"`

	// CorroborationCap bounds the total confidence boost from matches.
	CorroborationCap float64 `yaml:"corroboration_cap" mapstructure:"corroboration_cap"`

	// ConfidenceCeiling keeps the final score short of certainty.
	ConfidenceCeiling float64 `yaml:"confidence_ceiling" mapstructure:"confidence_ceiling"`

	// AutoApprove and Review split confidence into approve / review / reject.
	AutoApprove float64 `yaml:"auto_approve" mapstructure:"auto_approve"`
	Review      float64 `yaml:"review" mapstructure:"review"`

	// FlagThreshold is the pending-flag count that pulls an event from
	// default listings. Fixed, does not scale with popularity.
	FlagThreshold int `yaml:"flag_threshold" mapstructure:"flag_threshold"`
}

// TrustConfig is the injected source trust table: explicit per-source scores
// plus a conservative floor for unrecognized sources.
type TrustConfig struct {
	Scores map[string]float64 `yaml:"scores" mapstructure:"scores"`
	Floor  float64            `yaml:"floor" mapstructure:"floor"`
}

// LLMConfig configures the extraction/validation backend
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "openai", "anthropic", "ollama", "" to disable
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds per call
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// StoreConfig configures the SQLite event store
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SweepConfig configures batch verification runs
type SweepConfig struct {
	// PaceDelay is the fixed delay between items, respecting backend quotas.
	PaceDelay time.Duration `yaml:"pace_delay" mapstructure:"pace_delay"`

	// RequestsPerSecond and Burst feed the backend rate limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`

	// Workers is the parallelism of a batch run.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// CacheTTL bounds how long window queries are reused within a sweep.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Thresholds: ThresholdConfig{
			MatchThreshold:    0.6,
			MatchWindowDays:   1,
			BoostFactor:       0.1,
			CorroborationCap:  0.3,
			ConfidenceCeiling: 0.99,
			AutoApprove:       0.85,
			Review:            0.60,
			FlagThreshold:     3,
		},
		Trust: TrustConfig{
			Scores: DefaultTrustScores(),
			Floor:  0.40,
		},
		LLM: LLMConfig{
			Provider:  "",
			Model:     "",
			Timeout:   30,
			MaxTokens: 2000,
		},
		Store: StoreConfig{
			Path: "pulse.db",
		},
		Sweep: SweepConfig{
			PaceDelay:         200 * time.Millisecond,
			RequestsPerSecond: 2,
			Burst:             2,
			Workers:           1,
			CacheTTL:          time.Minute,
		},
		Output: OutputConfig{},
	}
}

// DefaultTrustScores maps known source tags to base trust, grouped by
// provenance tier. Illustrative starting values, recalibrated offline from
// accuracy feedback.
func DefaultTrustScores() map[string]float64 {
	return map[string]float64{
		// Direct vendor APIs: structured, authoritative.
		"mindbody-api":   0.95,
		"eventbrite-api": 0.93,
		"wellnessliving": 0.92,

		// Official municipal and tourism widgets.
		"city-recreation": 0.90,
		"tourism-board":   0.88,
		"library-feed":    0.85,

		// Third-party aggregators.
		"firecrawl-aggregator": 0.75,
		"allevents":            0.72,
		"eventful":             0.70,

		// General web scraping.
		"scrape-venue-site": 0.65,
		"scrape-generic":    0.60,

		// Community submissions: higher when the submitter has a previously
		// admin-verified submission.
		"community-verified": 0.85,
		"community":          0.50,
	}
}

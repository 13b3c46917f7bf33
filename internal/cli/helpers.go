package cli

import (
	"fmt"
	"os"

	"github.com/jeffkirdeikis/pulse-verify/internal/cache"
	"github.com/jeffkirdeikis/pulse-verify/internal/extract"
	"github.com/jeffkirdeikis/pulse-verify/internal/llm"
	"github.com/jeffkirdeikis/pulse-verify/internal/match"
	"github.com/jeffkirdeikis/pulse-verify/internal/model"
	"github.com/jeffkirdeikis/pulse-verify/internal/route"
	"github.com/jeffkirdeikis/pulse-verify/internal/store"
	"github.com/jeffkirdeikis/pulse-verify/internal/trust"
	"github.com/jeffkirdeikis/pulse-verify/internal/verify"
	"github.com/jeffkirdeikis/pulse-verify/internal/worker"
	"github.com/spf13/viper"
)

// loadConfig merges viper state (file, env, flags) over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// API keys preferentially come from conventional env vars
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return cfg, nil
}

// logf returns the progress logger for the current verbosity
func logf(cfg *model.Config) func(format string, args ...any) {
	if !cfg.Output.Verbose && !verbose {
		return func(string, ...any) {}
	}
	return func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// components bundles the wired verification subsystem
type components struct {
	store    *store.Store
	trust    *trust.Table
	finder   *match.Finder
	verifier *verify.Verifier
	extract  *extract.Extractor
	router   *route.Router
	pacer    *worker.Pacer
}

// buildComponents wires the subsystem from configuration. The LLM backend may
// be nil (extraction-dependent commands check).
func buildComponents(cfg *model.Config) (*components, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	table := trust.NewTable(cfg.Trust)

	finder := match.NewFinder(st, cfg.Thresholds)
	if cfg.Sweep.CacheTTL > 0 {
		finder.WithCache(cache.NewMemoryCache(cfg.Sweep.CacheTTL), cfg.Sweep.CacheTTL)
	}

	pacer := worker.NewPacer(cfg.Sweep.RequestsPerSecond, cfg.Sweep.Burst, cfg.Sweep.PaceDelay)
	extractor := extract.NewExtractor(provider)

	router := route.NewRouter(st, extractor, table, cfg.Thresholds).
		WithPacer(pacer).
		WithLogger(logf(cfg))

	return &components{
		store:    st,
		trust:    table,
		finder:   finder,
		verifier: verify.NewVerifier(table, finder, cfg.Thresholds),
		extract:  extractor,
		router:   router,
		pacer:    pacer,
	}, nil
}

// Close releases held resources
func (c *components) Close() {
	_ = c.store.Close()
}

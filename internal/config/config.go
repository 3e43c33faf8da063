// Package config resolves the command-line configuration from defaults, an
// optional YAML file, DCA_* environment variables and flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peter-kozarec/declinefit/pkg/fit"
	"github.com/peter-kozarec/declinefit/pkg/models/decline"
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"github.com/peter-kozarec/declinefit/pkg/uncertainty"
	"github.com/peter-kozarec/declinefit/pkg/validation"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DCA"

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Log        LogConfig                     `yaml:"log"`
	Fit        FitConfig                     `yaml:"fit"`
	Validation ValidationConfig              `yaml:"validation"`
	Bootstrap  BootstrapConfig               `yaml:"bootstrap"`
	MCMC       MCMCConfig                    `yaml:"mcmc"`
	Store      StoreConfig                   `yaml:"store"`
	Initials   map[string]map[string]float64 `yaml:"initials,omitempty"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type FitConfig struct {
	Objective    string  `yaml:"objective"`
	GlobalSearch bool    `yaml:"global_search"`
	HuberDelta   float64 `yaml:"huber_delta"`
	MaxNFev      int     `yaml:"max_nfev"`
	Seed         int64   `yaml:"seed"`
}

type ValidationConfig struct {
	Splits           int     `yaml:"splits"`
	MinTrainFraction float64 `yaml:"min_train_fraction"`
	Workers          int     `yaml:"workers"`
}

type BootstrapConfig struct {
	N       int     `yaml:"n"`
	Seed    int64   `yaml:"seed"`
	Alpha   float64 `yaml:"alpha"`
	Workers int     `yaml:"workers"`
}

type MCMCConfig struct {
	Samples   int     `yaml:"samples"`
	StepScale float64 `yaml:"step_scale"`
	Sigma     float64 `yaml:"sigma"`
	Seed      int64   `yaml:"seed"`
}

type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// flagBindings maps viper keys to pflag names.
var flagBindings = map[string]string{
	"log.level":                     "log-level",
	"log.development":               "log-development",
	"fit.objective":                 "objective",
	"fit.global_search":             "global-search",
	"fit.huber_delta":               "huber-delta",
	"fit.max_nfev":                  "max-nfev",
	"fit.seed":                      "seed",
	"validation.splits":             "splits",
	"validation.min_train_fraction": "min-train-fraction",
	"validation.workers":            "workers",
	"bootstrap.n":                   "n-boot",
	"bootstrap.seed":                "boot-seed",
	"bootstrap.alpha":               "alpha",
	"bootstrap.workers":             "boot-workers",
	"mcmc.samples":                  "samples",
	"mcmc.step_scale":               "step-scale",
	"mcmc.sigma":                    "sigma",
	"mcmc.seed":                     "mcmc-seed",
	"store.dsn":                     "dsn",
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Fit: FitConfig{
			Objective:  string(objective.LeastSquares),
			HuberDelta: fit.DefaultHuberDelta,
			MaxNFev:    fit.DefaultMaxNFev,
			Seed:       fit.DefaultSeed,
		},
		Validation: ValidationConfig{
			Splits:           validation.DefaultSplits,
			MinTrainFraction: validation.DefaultMinTrainFraction,
			Workers:          1,
		},
		Bootstrap: BootstrapConfig{N: 200, Seed: 123, Alpha: 0.05, Workers: 1},
		MCMC:      MCMCConfig{Samples: 2000, StepScale: 0.01, Sigma: 1, Seed: 123},
	}
}

// RegisterFlags adds every bindable flag to fs with the default values.
func RegisterFlags(fs *flag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Bool("log-development", d.Log.Development, "human-readable console logging")
	fs.String("objective", d.Fit.Objective, "fit objective (ls, huber)")
	fs.Bool("global-search", d.Fit.GlobalSearch, "seed the local fit with differential evolution")
	fs.Float64("huber-delta", d.Fit.HuberDelta, "Huber loss transition point")
	fs.Int("max-nfev", d.Fit.MaxNFev, "maximum residual evaluations per fit")
	fs.Int64("seed", d.Fit.Seed, "differential evolution seed")
	fs.Int("splits", d.Validation.Splits, "blocked cross-validation splits")
	fs.Float64("min-train-fraction", d.Validation.MinTrainFraction, "fraction of samples in the first training block")
	fs.Int("workers", d.Validation.Workers, "families compared concurrently")
	fs.Int("n-boot", d.Bootstrap.N, "bootstrap resamples")
	fs.Int64("boot-seed", d.Bootstrap.Seed, "bootstrap seed")
	fs.Float64("alpha", d.Bootstrap.Alpha, "confidence interval significance level")
	fs.Int("boot-workers", d.Bootstrap.Workers, "bootstrap refits run concurrently")
	fs.Int("samples", d.MCMC.Samples, "MCMC chain length")
	fs.Float64("step-scale", d.MCMC.StepScale, "MCMC proposal standard deviation")
	fs.Float64("sigma", d.MCMC.Sigma, "observation noise standard deviation")
	fs.Int64("mcmc-seed", d.MCMC.Seed, "MCMC seed")
	fs.String("dsn", d.Store.DSN, "DuckDB database path; empty disables persistence")
}

// Load resolves the configuration. path may be empty and fs may be nil.
func Load(path string, fs *flag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config %q: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for key, name := range flagBindings {
			if f := fs.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Fit: FitConfig{
			Objective:    v.GetString("fit.objective"),
			GlobalSearch: v.GetBool("fit.global_search"),
			HuberDelta:   v.GetFloat64("fit.huber_delta"),
			MaxNFev:      v.GetInt("fit.max_nfev"),
			Seed:         v.GetInt64("fit.seed"),
		},
		Validation: ValidationConfig{
			Splits:           v.GetInt("validation.splits"),
			MinTrainFraction: v.GetFloat64("validation.min_train_fraction"),
			Workers:          v.GetInt("validation.workers"),
		},
		Bootstrap: BootstrapConfig{
			N:       v.GetInt("bootstrap.n"),
			Seed:    v.GetInt64("bootstrap.seed"),
			Alpha:   v.GetFloat64("bootstrap.alpha"),
			Workers: v.GetInt("bootstrap.workers"),
		},
		MCMC: MCMCConfig{
			Samples:   v.GetInt("mcmc.samples"),
			StepScale: v.GetFloat64("mcmc.step_scale"),
			Sigma:     v.GetFloat64("mcmc.sigma"),
			Seed:      v.GetInt64("mcmc.seed"),
		},
		Store: StoreConfig{DSN: v.GetString("store.dsn")},
	}
	if err := v.UnmarshalKey("initials", &cfg.Initials); err != nil {
		return nil, fmt.Errorf("unable to decode initials: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("fit.objective", d.Fit.Objective)
	v.SetDefault("fit.global_search", d.Fit.GlobalSearch)
	v.SetDefault("fit.huber_delta", d.Fit.HuberDelta)
	v.SetDefault("fit.max_nfev", d.Fit.MaxNFev)
	v.SetDefault("fit.seed", d.Fit.Seed)
	v.SetDefault("validation.splits", d.Validation.Splits)
	v.SetDefault("validation.min_train_fraction", d.Validation.MinTrainFraction)
	v.SetDefault("validation.workers", d.Validation.Workers)
	v.SetDefault("bootstrap.n", d.Bootstrap.N)
	v.SetDefault("bootstrap.seed", d.Bootstrap.Seed)
	v.SetDefault("bootstrap.alpha", d.Bootstrap.Alpha)
	v.SetDefault("bootstrap.workers", d.Bootstrap.Workers)
	v.SetDefault("mcmc.samples", d.MCMC.Samples)
	v.SetDefault("mcmc.step_scale", d.MCMC.StepScale)
	v.SetDefault("mcmc.sigma", d.MCMC.Sigma)
	v.SetDefault("mcmc.seed", d.MCMC.Seed)
	v.SetDefault("store.dsn", d.Store.DSN)
}

// Validate rejects values no engine would accept.
func (c *Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	if _, err := objective.ParseKind(c.Fit.Objective); err != nil {
		return fmt.Errorf("%w: fit.objective: %w", ErrInvalid, err)
	}
	checks := []struct {
		ok   bool
		name string
	}{
		{c.Fit.HuberDelta > 0, "fit.huber_delta must be positive"},
		{c.Fit.MaxNFev > 0, "fit.max_nfev must be positive"},
		{c.Validation.Splits > 0, "validation.splits must be positive"},
		{c.Validation.MinTrainFraction > 0 && c.Validation.MinTrainFraction < 1, "validation.min_train_fraction must be in (0, 1)"},
		{c.Validation.Workers > 0, "validation.workers must be positive"},
		{c.Bootstrap.N > 0, "bootstrap.n must be positive"},
		{c.Bootstrap.Alpha > 0 && c.Bootstrap.Alpha < 1, "bootstrap.alpha must be in (0, 1)"},
		{c.Bootstrap.Workers > 0, "bootstrap.workers must be positive"},
		{c.MCMC.Samples > 0, "mcmc.samples must be positive"},
		{c.MCMC.StepScale > 0, "mcmc.step_scale must be positive"},
		{c.MCMC.Sigma > 0, "mcmc.sigma must be positive"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s", ErrInvalid, check.name)
		}
	}
	for family, params := range c.Initials {
		model, err := decline.Lookup(decline.Family(family))
		if err != nil {
			return fmt.Errorf("%w: initials: %w", ErrInvalid, err)
		}
		if _, err := model.Spec().Pack(params); err != nil {
			return fmt.Errorf("%w: initials: %w", ErrInvalid, err)
		}
	}
	return nil
}

// FitOptions converts the fit section into engine options.
func (c *Config) FitOptions(logger *zap.Logger) []fit.Option {
	return []fit.Option{
		fit.WithObjective(objective.Kind(c.Fit.Objective)),
		fit.WithGlobalSearch(c.Fit.GlobalSearch),
		fit.WithHuberDelta(c.Fit.HuberDelta),
		fit.WithMaxNFev(c.Fit.MaxNFev),
		fit.WithSeed(c.Fit.Seed),
		fit.WithLogger(logger),
	}
}

func (c *Config) ValidationOptions(logger *zap.Logger) []validation.Option {
	return []validation.Option{
		validation.WithSplits(c.Validation.Splits),
		validation.WithMinTrainFraction(c.Validation.MinTrainFraction),
		validation.WithWorkers(c.Validation.Workers),
		validation.WithFitOptions(c.FitOptions(logger)...),
		validation.WithLogger(logger),
	}
}

func (c *Config) BootstrapOptions(logger *zap.Logger) []uncertainty.Option {
	return []uncertainty.Option{
		uncertainty.WithWorkers(c.Bootstrap.Workers),
		uncertainty.WithFitOptions(c.FitOptions(logger)...),
		uncertainty.WithLogger(logger),
	}
}

// Initial returns the configured start for family, if any.
func (c *Config) Initial(family decline.Family) (decline.Params, bool) {
	p, ok := c.Initials[family.String()]
	if !ok {
		return nil, false
	}
	return decline.Params(p).Clone(), true
}

// Write dumps the effective configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	return enc.Close()
}

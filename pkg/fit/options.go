package fit

import (
	"github.com/peter-kozarec/declinefit/pkg/tools/objective"
	"go.uber.org/zap"
)

const (
	DefaultHuberDelta = 1.0
	DefaultMaxNFev    = 20_000
	DefaultSeed       = 123
)

// Options controls a single fit. The zero value is not usable; start from
// DefaultOptions or pass Option values to Model.
type Options struct {
	Objective    objective.Kind
	GlobalSearch bool
	HuberDelta   float64
	MaxNFev      int
	// Seed drives the global search population.
	Seed   int64
	Logger *zap.Logger
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Objective:  objective.LeastSquares,
		HuberDelta: DefaultHuberDelta,
		MaxNFev:    DefaultMaxNFev,
		Seed:       DefaultSeed,
		Logger:     zap.NewNop(),
	}
}

func WithObjective(kind objective.Kind) Option {
	return func(o *Options) {
		o.Objective = kind
	}
}

func WithGlobalSearch(enabled bool) Option {
	return func(o *Options) {
		o.GlobalSearch = enabled
	}
}

func WithHuberDelta(delta float64) Option {
	return func(o *Options) {
		o.HuberDelta = delta
	}
}

func WithMaxNFev(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxNFev = n
		}
	}
}

func WithSeed(seed int64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithOptions replaces every setting at once.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		logger := o.Logger
		*o = opts
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

func buildOptions(options []Option) Options {
	opts := DefaultOptions()
	for _, option := range options {
		option(&opts)
	}
	if opts.Objective == "" {
		opts.Objective = objective.LeastSquares
	}
	if opts.HuberDelta <= 0 {
		opts.HuberDelta = DefaultHuberDelta
	}
	if opts.MaxNFev <= 0 {
		opts.MaxNFev = DefaultMaxNFev
	}
	return opts
}

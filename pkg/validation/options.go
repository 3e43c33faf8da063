package validation

import (
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"go.uber.org/zap"
)

type Options struct {
	Splits           int
	MinTrainFraction float64
	// Workers bounds the number of families fitted concurrently by Compare.
	Workers    int
	FitOptions []fit.Option
	Logger     *zap.Logger
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Splits:           DefaultSplits,
		MinTrainFraction: DefaultMinTrainFraction,
		Workers:          1,
		Logger:           zap.NewNop(),
	}
}

func WithSplits(n int) Option {
	return func(o *Options) {
		o.Splits = n
	}
}

func WithMinTrainFraction(f float64) Option {
	return func(o *Options) {
		o.MinTrainFraction = f
	}
}

func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithFitOptions forwards options to every fit. Without it fits use the
// fit package defaults.
func WithFitOptions(opts ...fit.Option) Option {
	return func(o *Options) {
		o.FitOptions = append(o.FitOptions, opts...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func buildOptions(options []Option) Options {
	opts := DefaultOptions()
	for _, option := range options {
		option(&opts)
	}
	return opts
}

func (o Options) fitOptions() []fit.Option {
	out := make([]fit.Option, 0, len(o.FitOptions)+1)
	out = append(out, fit.WithLogger(o.Logger))
	return append(out, o.FitOptions...)
}

package uncertainty

import (
	"github.com/peter-kozarec/declinefit/pkg/fit"
	"go.uber.org/zap"
)

type Options struct {
	// Workers bounds the number of bootstrap refits in flight.
	Workers    int
	FitOptions []fit.Option
	Logger     *zap.Logger
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Workers: 1,
		Logger:  zap.NewNop(),
	}
}

func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

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

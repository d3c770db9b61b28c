package cache

import (
	"time"
)

// Option configures a shared tier.
type Option func(*Options)

// Options holds shared tier configuration.
type Options struct {
	DSN    string
	Prefix string
	MaxAge time.Duration
}

func newOptions(opts ...Option) *Options {
	o := &Options{
		Prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply resolves opts over the defaults; tier backends use it.
func Apply(opts ...Option) *Options {
	return newOptions(opts...)
}

func WithDSN(dsn string) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithPrefix namespaces every key written by the tier.
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithMaxAge returns an Option to configure how long entries live in the tier.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}

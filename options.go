package vds

import (
	"fmt"

	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/log"
	"github.com/mwantia/vds/schema"
)

type Options struct {
	Overwrite bool
	ReadOnly  bool
	Logger    *log.Logger
	Schema    *schema.Schema
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		Logger: log.Discard(),
		Schema: schema.Default(),
	}
}

func applyOptions(opts []Option) (*Options, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if options.Overwrite && options.ReadOnly {
		return nil, fmt.Errorf("%w: overwrite and read-only are exclusive", data.ErrInvalidArgument)
	}
	return options, nil
}

// WithOverwrite lets Create replace an existing dataset instead of failing
// with ErrAlreadyExists.
func WithOverwrite() Option {
	return func(opts *Options) error {
		opts.Overwrite = true
		return nil
	}
}

// WithReadOnly opens the dataset without write access.
func WithReadOnly() Option {
	return func(opts *Options) error {
		opts.ReadOnly = true
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", data.ErrInvalidArgument)
		}
		opts.Logger = logger
		return nil
	}
}

// WithSchema replaces the built-in schema.
func WithSchema(s *schema.Schema) Option {
	return func(opts *Options) error {
		if s == nil {
			return fmt.Errorf("%w: nil schema", data.ErrInvalidArgument)
		}
		opts.Schema = s
		return nil
	}
}

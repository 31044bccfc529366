package cmd

import (
	"context"
	"io"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/log"
)

// API is the part of the dataset library commands work with.
type API interface {
	// Open opens the dataset at a "kind://location" address.
	Open(ctx context.Context, address string, opts ...vds.Option) (*vds.Dataset, error)

	// Create creates a dataset at a "kind://location" address.
	Create(ctx context.Context, address string, opts ...vds.Option) (*vds.Dataset, error)

	// Logger returns the logger datasets opened through this API write to.
	Logger() *log.Logger
}

// Command represents an executable command of the vds tool.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "dump [-f field] <address>")
	Usage() string

	// Execute runs the command with parsed arguments
	// The writer parameter is where command output should be written
	// Returns the exit code and the error behind it
	Execute(ctx context.Context, api API, args *CommandArgs, writer io.Writer) (vds.ExitCode, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}

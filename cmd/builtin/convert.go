package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
	"github.com/mwantia/vds/data"
)

type ConvertCommand struct {
}

// Name returns the command identifier
func (*ConvertCommand) Name() string {
	return "convert"
}

// Description returns human-readable help text
func (*ConvertCommand) Description() string {
	return "Copy a dataset to another location or backend"
}

// Usage returns a usage string for help
func (*ConvertCommand) Usage() string {
	return "convert [--overwrite] <source> <destination>"
}

// Execute runs the command with parsed arguments
func (c *ConvertCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (vds.ExitCode, error) {
	if len(args.Args) != 2 {
		return fail(fmt.Errorf("%w: usage: %s", data.ErrInvalidArgument, c.Usage()))
	}

	src, err := api.Open(ctx, args.Args[0], vds.WithReadOnly())
	if err != nil {
		return fail(err)
	}

	var opts []vds.Option
	if args.Bool("overwrite") {
		opts = append(opts, vds.WithOverwrite())
	}

	dst, err := api.Create(ctx, args.Args[1], opts...)
	if err != nil {
		return fail(closeDataset(ctx, src, err))
	}

	n, err := vds.Copy(ctx, dst, src)

	errs := data.Errors{}
	errs.Add(err)
	errs.Add(dst.Close(ctx))
	errs.Add(src.Close(ctx))
	if err := errs.Errors(); err != nil {
		return fail(err)
	}

	api.Logger().Info("Converted '%s' to '%s'", args.Args[0], args.Args[1])
	fmt.Fprintf(writer, "copied %d fields\n", n)
	return vds.Success, nil
}

// GetFlags returns the flag set for this command
func (*ConvertCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"overwrite": {
				Name:        "overwrite",
				Type:        "bool",
				Description: "Replace an existing destination dataset",
			},
		},
	}
}

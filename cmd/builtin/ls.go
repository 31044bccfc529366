package builtin

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
)

type LsCommand struct {
}

// Name returns the command identifier
func (*LsCommand) Name() string {
	return "ls"
}

// Description returns human-readable help text
func (*LsCommand) Description() string {
	return "List the fields written to a dataset"
}

// Usage returns a usage string for help
func (*LsCommand) Usage() string {
	return "ls [-l] <address>"
}

// Execute runs the command with parsed arguments
func (c *LsCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (vds.ExitCode, error) {
	ds, err := openReadOnly(ctx, api, args, c.Usage())
	if err != nil {
		return fail(err)
	}

	err = c.list(ctx, ds, args.Bool("long"), writer)
	if err := closeDataset(ctx, ds, err); err != nil {
		return fail(err)
	}
	return vds.Success, nil
}

func (*LsCommand) list(ctx context.Context, ds *vds.Dataset, long bool, writer io.Writer) error {
	fields, err := ds.Fields(ctx)
	if err != nil {
		return err
	}

	if !long {
		for _, f := range fields {
			fmt.Fprintln(writer, f.Key)
		}
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		shape := "-"
		if f.IsArray() {
			resolved, err := ds.Shape(ctx, f.Key.String())
			if err != nil {
				return err
			}
			shape = fmt.Sprint(resolved)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Key, f.Type, shape, f.Policy)
	}
	return tw.Flush()
}

// GetFlags returns the flag set for this command
func (*LsCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"long": {
				Name:        "long",
				Short:       "l",
				Type:        "bool",
				Description: "Show type, shape and policy of each field",
			},
		},
	}
}

package builtin

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/backend/text"
	"github.com/mwantia/vds/cmd"
	"github.com/mwantia/vds/schema"
)

type DumpCommand struct {
}

// Name returns the command identifier
func (*DumpCommand) Name() string {
	return "dump"
}

// Description returns human-readable help text
func (*DumpCommand) Description() string {
	return "Print every field of a dataset in the text backend format"
}

// Usage returns a usage string for help
func (*DumpCommand) Usage() string {
	return "dump [-f group.field] <address>"
}

// Execute runs the command with parsed arguments
func (c *DumpCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (vds.ExitCode, error) {
	ds, err := openReadOnly(ctx, api, args, c.Usage())
	if err != nil {
		return fail(err)
	}

	err = c.dump(ctx, ds, args.String("field"), writer)
	if err := closeDataset(ctx, ds, err); err != nil {
		return fail(err)
	}
	return vds.Success, nil
}

func (*DumpCommand) dump(ctx context.Context, ds *vds.Dataset, only string, writer io.Writer) error {
	var fields []*schema.Field
	if only != "" {
		f, err := ds.Schema().Field(only)
		if err != nil {
			return err
		}
		fields = []*schema.Field{f}
	} else {
		var err error
		if fields, err = ds.Fields(ctx); err != nil {
			return err
		}
	}

	group := ""
	for _, f := range fields {
		value, err := ds.Read(ctx, f.Key.String())
		if err != nil {
			return err
		}

		if only == "" && f.Key.Group != group {
			group = f.Key.Group
			fmt.Fprintf(writer, "# %s\n", group)
		}
		if err := text.WriteEntry(writer, f.Key, value); err != nil {
			return err
		}
	}
	if only != "" {
		return nil
	}

	unknown, err := undeclared(ctx, ds)
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		fmt.Fprintln(writer, "# undeclared")
	}
	for _, key := range unknown {
		fmt.Fprintf(writer, "# %s\n", key)
	}
	return nil
}

// GetFlags returns the flag set for this command
func (*DumpCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"field": {
				Name:        "field",
				Short:       "f",
				Type:        "string",
				Description: "Only print the named field",
			},
		},
	}
}

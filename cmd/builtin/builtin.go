package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
	"github.com/mwantia/vds/data"
)

// InitBuiltin registers every built-in command with cm.
func InitBuiltin(cm *cmd.CommandManager) error {
	commands := []cmd.Command{
		&InfoCommand{},
		&LsCommand{},
		&DumpCommand{},
		&ConvertCommand{},
		&HelpCommand{manager: cm},
	}

	for _, c := range commands {
		if err := cm.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// fail turns err into the command result.
func fail(err error) (vds.ExitCode, error) {
	return vds.Code(err), err
}

// openReadOnly opens the single address argument of a command.
func openReadOnly(ctx context.Context, api cmd.API, args *cmd.CommandArgs, usage string) (*vds.Dataset, error) {
	if len(args.Args) != 1 {
		return nil, fmt.Errorf("%w: usage: %s", data.ErrInvalidArgument, usage)
	}
	return api.Open(ctx, args.Args[0], vds.WithReadOnly())
}

// closeDataset closes ds and keeps the first error.
func closeDataset(ctx context.Context, ds *vds.Dataset, err error) error {
	errs := data.Errors{}
	errs.Add(err)
	errs.Add(ds.Close(ctx))
	return errs.Errors()
}

// undeclared lists the stored fields of ds the schema does not declare.
func undeclared(ctx context.Context, ds *vds.Dataset) ([]data.FieldKey, error) {
	keys, err := ds.Keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]data.FieldKey, 0)
	for _, key := range keys {
		if _, err := ds.Schema().Field(key.String()); errors.Is(err, data.ErrUnknownField) {
			out = append(out, key)
		}
	}
	return out, nil
}

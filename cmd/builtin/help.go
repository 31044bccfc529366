package builtin

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
)

type HelpCommand struct {
	manager *cmd.CommandManager
}

// Name returns the command identifier
func (*HelpCommand) Name() string {
	return "help"
}

// Description returns human-readable help text
func (*HelpCommand) Description() string {
	return "Show the available commands or the flags of one command"
}

// Usage returns a usage string for help
func (*HelpCommand) Usage() string {
	return "help [command]"
}

// Execute runs the command with parsed arguments
func (h *HelpCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (vds.ExitCode, error) {
	if len(args.Args) == 0 {
		tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
		for _, c := range h.manager.List() {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Usage(), c.Description())
		}
		if err := tw.Flush(); err != nil {
			return fail(err)
		}
		return vds.Success, nil
	}

	c, err := h.manager.Get(args.Args[0])
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(writer, "usage: %s\n\n%s\n", c.Usage(), c.Description())

	flagSet := c.GetFlags()
	if flagSet == nil || len(flagSet.Flags) == 0 {
		return vds.Success, nil
	}

	names := make([]string, 0, len(flagSet.Flags))
	for name := range flagSet.Flags {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Fprintln(writer)
	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	for _, name := range names {
		flag := flagSet.Flags[name]
		spelling := "--" + flag.Name
		if flag.Short != "" {
			spelling = "-" + flag.Short + ", " + spelling
		}
		fmt.Fprintf(tw, "  %s\t%s\n", spelling, strings.TrimSpace(flag.Description))
	}
	if err := tw.Flush(); err != nil {
		return fail(err)
	}

	return vds.Success, nil
}

// GetFlags returns the flag set for this command
func (*HelpCommand) GetFlags() *cmd.CommandFlagSet {
	return nil
}

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
	"github.com/mwantia/vds/schema"
)

type InfoCommand struct {
}

type datasetInfo struct {
	Address      string   `json:"address"`
	Backend      string   `json:"backend"`
	UUID         string   `json:"uuid"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities"`
	Fields       int      `json:"fields"`
	Undeclared   []string `json:"undeclared,omitempty"`
}

// Name returns the command identifier
func (*InfoCommand) Name() string {
	return "info"
}

// Description returns human-readable help text
func (*InfoCommand) Description() string {
	return "Show backend, uuid and capabilities of a dataset"
}

// Usage returns a usage string for help
func (*InfoCommand) Usage() string {
	return "info [--json] <address>"
}

// Execute runs the command with parsed arguments
func (c *InfoCommand) Execute(ctx context.Context, api cmd.API, args *cmd.CommandArgs, writer io.Writer) (vds.ExitCode, error) {
	ds, err := openReadOnly(ctx, api, args, c.Usage())
	if err != nil {
		return fail(err)
	}

	info, err := c.collect(ctx, args.Args[0], ds)
	if err := closeDataset(ctx, ds, err); err != nil {
		return fail(err)
	}

	if args.Bool("json") {
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(info); err != nil {
			return fail(err)
		}
		return vds.Success, nil
	}

	fmt.Fprintf(writer, "address:      %s\n", info.Address)
	fmt.Fprintf(writer, "backend:      %s\n", info.Backend)
	fmt.Fprintf(writer, "uuid:         %s\n", info.UUID)
	if info.Version != "" {
		fmt.Fprintf(writer, "version:      %s\n", info.Version)
	}
	if info.Description != "" {
		fmt.Fprintf(writer, "description:  %s\n", info.Description)
	}
	fmt.Fprintf(writer, "capabilities: %s\n", strings.Join(info.Capabilities, ", "))
	fmt.Fprintf(writer, "fields:       %d\n", info.Fields)
	if len(info.Undeclared) > 0 {
		fmt.Fprintf(writer, "undeclared:   %s\n", strings.Join(info.Undeclared, ", "))
	}

	return vds.Success, nil
}

func (*InfoCommand) collect(ctx context.Context, address string, ds *vds.Dataset) (*datasetInfo, error) {
	info := &datasetInfo{
		Address: address,
		Backend: ds.Backend(),
		UUID:    ds.UUID(),
	}

	for _, c := range ds.Capabilities().Capabilities {
		info.Capabilities = append(info.Capabilities, string(c))
	}

	fields, err := ds.Fields(ctx)
	if err != nil {
		return nil, err
	}
	info.Fields = len(fields)

	unknown, err := undeclared(ctx, ds)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		info.Undeclared = append(info.Undeclared, key.String())
	}

	for _, f := range fields {
		switch f.Key {
		case schema.MetadataPackageVersion.Key:
			info.Version, err = ds.ReadMetadataPackageVersion(ctx)
		case schema.MetadataDescription.Key:
			info.Description, err = ds.ReadMetadataDescription(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	return info, nil
}

// GetFlags returns the flag set for this command
func (*InfoCommand) GetFlags() *cmd.CommandFlagSet {
	return &cmd.CommandFlagSet{
		Flags: map[string]*cmd.CommandFlag{
			"json": {
				Name:        "json",
				Short:       "j",
				Type:        "bool",
				Description: "Print the information as JSON",
			},
		},
	}
}

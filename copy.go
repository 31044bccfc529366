package vds

import (
	"context"
	"fmt"

	"github.com/mwantia/vds/schema"
)

// Copy writes every field present in src to dst, dimensions first. The
// metadata stamped by Create (uuid and package version) is left as dst has
// it. It returns the number of fields copied.
func Copy(ctx context.Context, dst, src *Dataset) (int, error) {
	if dst == src {
		return 0, fmt.Errorf("%w: source and destination are the same dataset", ErrInvalidArgument)
	}

	fields, err := src.Fields(ctx)
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, f := range fields {
		if f.Key == schema.MetadataUUID.Key || f.Key == schema.MetadataPackageVersion.Key {
			continue
		}
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		value, err := src.Read(ctx, f.Key.String())
		if err != nil {
			return copied, fmt.Errorf("failed to read %s: %w", f.Key, err)
		}
		if err := dst.Write(ctx, f.Key.String(), value); err != nil {
			return copied, fmt.Errorf("failed to write %s: %w", f.Key, err)
		}
		copied++
	}

	return copied, nil
}

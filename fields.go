package vds

import (
	"context"
	"fmt"

	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/schema"
)

// Typed accessors. Each one goes through Write or Read and therefore
// enforces the same policy; they only save the caller from building and
// unpacking data.Value.

func (ds *Dataset) WriteDim(ctx context.Context, name string, v uint64) error {
	return ds.Write(ctx, name, data.DimValue(v))
}

func (ds *Dataset) ReadDim(ctx context.Context, name string) (uint64, error) {
	value, err := ds.readTyped(ctx, name, data.TypeDim)
	if err != nil {
		return 0, err
	}
	return value.Dims[0], nil
}

func (ds *Dataset) WriteInt(ctx context.Context, name string, v int64) error {
	return ds.Write(ctx, name, data.IntValue(v))
}

func (ds *Dataset) ReadInt(ctx context.Context, name string) (int64, error) {
	value, err := ds.readTyped(ctx, name, data.TypeInt)
	if err != nil {
		return 0, err
	}
	return value.Ints[0], nil
}

func (ds *Dataset) WriteFloat(ctx context.Context, name string, v float64) error {
	return ds.Write(ctx, name, data.FloatValue(v))
}

func (ds *Dataset) ReadFloat(ctx context.Context, name string) (float64, error) {
	value, err := ds.readTyped(ctx, name, data.TypeFloat)
	if err != nil {
		return 0, err
	}
	return value.Floats[0], nil
}

func (ds *Dataset) WriteString(ctx context.Context, name string, v string) error {
	return ds.Write(ctx, name, data.StringValue(v))
}

func (ds *Dataset) ReadString(ctx context.Context, name string) (string, error) {
	value, err := ds.readTyped(ctx, name, data.TypeString)
	if err != nil {
		return "", err
	}
	return value.Strings[0], nil
}

func (ds *Dataset) WriteInts(ctx context.Context, name string, v []int64) error {
	return ds.Write(ctx, name, data.IntArray(v))
}

func (ds *Dataset) ReadInts(ctx context.Context, name string) ([]int64, error) {
	value, err := ds.readTyped(ctx, name, data.TypeInt)
	if err != nil {
		return nil, err
	}
	return value.Ints, nil
}

// ReadIntsAs reads an integer array and narrows it to T. Elements that do
// not fit T fail with ErrTypeMismatch instead of being truncated.
func ReadIntsAs[T data.Integer](ctx context.Context, ds *Dataset, name string) ([]T, error) {
	values, err := ds.ReadInts(ctx, name)
	if err != nil {
		return nil, err
	}
	return data.ConvertInts[T](values)
}

func (ds *Dataset) WriteFloats(ctx context.Context, name string, v []float64) error {
	return ds.Write(ctx, name, data.FloatArray(v))
}

func (ds *Dataset) ReadFloats(ctx context.Context, name string) ([]float64, error) {
	value, err := ds.readTyped(ctx, name, data.TypeFloat)
	if err != nil {
		return nil, err
	}
	return value.Floats, nil
}

// ReadFloatsInto fills buf and returns the number of elements read.
func (ds *Dataset) ReadFloatsInto(ctx context.Context, name string, buf []float64) (int, error) {
	return ds.ReadInto(ctx, name, &data.Value{Type: data.TypeFloat, Floats: buf})
}

func (ds *Dataset) WriteStrings(ctx context.Context, name string, v []string) error {
	return ds.Write(ctx, name, data.StringArray(v))
}

func (ds *Dataset) ReadStrings(ctx context.Context, name string) ([]string, error) {
	value, err := ds.readTyped(ctx, name, data.TypeString)
	if err != nil {
		return nil, err
	}
	return value.Strings, nil
}

func (ds *Dataset) readTyped(ctx context.Context, name string, typ data.DataType) (*data.Value, error) {
	value, err := ds.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if value.Type != typ {
		return nil, fmt.Errorf("%w: %s is %s, not %s", data.ErrTypeMismatch, name, value.Type, typ)
	}
	return value, nil
}

// Built-in fields

func (ds *Dataset) WriteMetadataDescription(ctx context.Context, v string) error {
	return ds.WriteString(ctx, schema.MetadataDescription.Key.String(), v)
}

func (ds *Dataset) ReadMetadataDescription(ctx context.Context) (string, error) {
	return ds.ReadString(ctx, schema.MetadataDescription.Key.String())
}

func (ds *Dataset) ReadMetadataPackageVersion(ctx context.Context) (string, error) {
	return ds.ReadString(ctx, schema.MetadataPackageVersion.Key.String())
}

func (ds *Dataset) WriteNucleusNum(ctx context.Context, n uint64) error {
	return ds.WriteDim(ctx, schema.NucleusNum.Key.String(), n)
}

func (ds *Dataset) ReadNucleusNum(ctx context.Context) (uint64, error) {
	return ds.ReadDim(ctx, schema.NucleusNum.Key.String())
}

func (ds *Dataset) WriteNucleusCharge(ctx context.Context, charge []float64) error {
	return ds.WriteFloats(ctx, schema.NucleusCharge.Key.String(), charge)
}

func (ds *Dataset) ReadNucleusCharge(ctx context.Context) ([]float64, error) {
	return ds.ReadFloats(ctx, schema.NucleusCharge.Key.String())
}

// WriteNucleusCoord takes the coordinates flattened row by row, x y z per
// nucleus.
func (ds *Dataset) WriteNucleusCoord(ctx context.Context, coord []float64) error {
	return ds.WriteFloats(ctx, schema.NucleusCoord.Key.String(), coord)
}

func (ds *Dataset) ReadNucleusCoord(ctx context.Context) ([]float64, error) {
	return ds.ReadFloats(ctx, schema.NucleusCoord.Key.String())
}

func (ds *Dataset) WriteNucleusLabel(ctx context.Context, labels []string) error {
	return ds.WriteStrings(ctx, schema.NucleusLabel.Key.String(), labels)
}

func (ds *Dataset) ReadNucleusLabel(ctx context.Context) ([]string, error) {
	return ds.ReadStrings(ctx, schema.NucleusLabel.Key.String())
}

func (ds *Dataset) WriteNucleusPointGroup(ctx context.Context, group string) error {
	return ds.WriteString(ctx, schema.NucleusPointGroup.Key.String(), group)
}

func (ds *Dataset) ReadNucleusPointGroup(ctx context.Context) (string, error) {
	return ds.ReadString(ctx, schema.NucleusPointGroup.Key.String())
}

func (ds *Dataset) WriteNucleusRepulsion(ctx context.Context, energy float64) error {
	return ds.WriteFloat(ctx, schema.NucleusRepulsion.Key.String(), energy)
}

func (ds *Dataset) ReadNucleusRepulsion(ctx context.Context) (float64, error) {
	return ds.ReadFloat(ctx, schema.NucleusRepulsion.Key.String())
}

func (ds *Dataset) WriteBasisNucleusIndex(ctx context.Context, index []int64) error {
	return ds.WriteInts(ctx, schema.BasisNucleusIndex.Key.String(), index)
}

func (ds *Dataset) ReadBasisNucleusIndex(ctx context.Context) ([]int64, error) {
	return ds.ReadInts(ctx, schema.BasisNucleusIndex.Key.String())
}

func (ds *Dataset) WriteElectronUpNum(ctx context.Context, n uint64) error {
	return ds.WriteDim(ctx, schema.ElectronUpNum.Key.String(), n)
}

func (ds *Dataset) ReadElectronUpNum(ctx context.Context) (uint64, error) {
	return ds.ReadDim(ctx, schema.ElectronUpNum.Key.String())
}

func (ds *Dataset) WriteElectronDnNum(ctx context.Context, n uint64) error {
	return ds.WriteDim(ctx, schema.ElectronDnNum.Key.String(), n)
}

func (ds *Dataset) ReadElectronDnNum(ctx context.Context) (uint64, error) {
	return ds.ReadDim(ctx, schema.ElectronDnNum.Key.String())
}

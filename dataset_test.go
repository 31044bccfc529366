package vds_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mwantia/vds"
	"github.com/mwantia/vds/backend"
	"github.com/mwantia/vds/backend/kv"
	"github.com/mwantia/vds/data"
	"github.com/mwantia/vds/schema"
	"github.com/mwantia/vds/vdstest"
)

var benzeneCoord = []float64{
	0.00000000, 1.39250319, 0.00000000,
	-1.20594314, 0.69625160, 0.00000000,
	-1.20594314, -0.69625160, 0.00000000,
	0.00000000, -1.39250319, 0.00000000,
	1.20594314, -0.69625160, 0.00000000,
	1.20594314, 0.69625160, 0.00000000,
	-2.14171677, 1.23652075, 0.00000000,
	-2.14171677, -1.23652075, 0.00000000,
	0.00000000, -2.47304151, 0.00000000,
	2.14171677, -1.23652075, 0.00000000,
	2.14171677, 1.23652075, 0.00000000,
	0.00000000, 2.47304151, 0.00000000,
}

var benzeneCharge = []float64{6, 6, 6, 6, 6, 6, 1, 1, 1, 1, 1, 1}

func TestDataset_CoordScenario(t *testing.T) {
	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			loc := factory(tst)

			ds, err := loc.Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)

			if err := ds.WriteNucleusNum(ctx, 12); err != nil {
				tst.Fatalf("WriteNucleusNum failed: %v", err)
			}
			if err := ds.WriteNucleusCoord(ctx, benzeneCoord); err != nil {
				tst.Fatalf("WriteNucleusCoord failed: %v", err)
			}

			err = ds.WriteNucleusNum(ctx, 20)
			if !errors.Is(err, vds.ErrReadOnlyViolation) || vds.Code(err) != vds.ReadOnlyViolation {
				tst.Fatalf("Expected ReadOnlyViolation on rewrite of nucleus.num, got %v", err)
			}
			if num, err := ds.ReadNucleusNum(ctx); err != nil || num != 12 {
				tst.Fatalf("Expected nucleus.num to stay 12, got %d (%v)", num, err)
			}

			modified := append([]float64(nil), benzeneCoord...)
			modified[0] = 666.666
			if err := ds.WriteNucleusCoord(ctx, modified); err != nil {
				tst.Fatalf("Overwrite of nucleus.coord failed: %v", err)
			}

			coord, err := ds.ReadNucleusCoord(ctx)
			if err != nil {
				tst.Fatalf("ReadNucleusCoord failed: %v", err)
			}
			if diff := cmp.Diff(modified, coord); diff != "" {
				tst.Fatalf("Unexpected coord after overwrite (-want +got):\n%s", diff)
			}

			shape, err := ds.Shape(ctx, "nucleus.coord")
			if err != nil {
				tst.Fatalf("Shape failed: %v", err)
			}
			if diff := cmp.Diff([]uint64{12, 3}, shape); diff != "" {
				tst.Errorf("Unexpected shape (-want +got):\n%s", diff)
			}

			if err := ds.Close(ctx); err != nil {
				tst.Fatalf("Close failed: %v", err)
			}

			ds, err = loc.Open(ctx)
			if err != nil {
				tst.Fatalf("Reopen failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if num, err := ds.ReadNucleusNum(ctx); err != nil || num != 12 {
				tst.Fatalf("Expected nucleus.num 12 after reopen, got %d (%v)", num, err)
			}
			coord, err = ds.ReadNucleusCoord(ctx)
			if err != nil {
				tst.Fatalf("ReadNucleusCoord after reopen failed: %v", err)
			}
			if diff := cmp.Diff(modified, coord); diff != "" {
				tst.Errorf("Unexpected coord after reopen (-want +got):\n%s", diff)
			}
			if err := ds.WriteNucleusNum(ctx, 12); !errors.Is(err, vds.ErrReadOnlyViolation) {
				tst.Errorf("Expected ReadOnlyViolation after reopen, got %v", err)
			}
		})
	}
}

func TestDataset_ChargeScenario(t *testing.T) {
	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()

			ds, err := factory(tst).Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if err := ds.WriteNucleusNum(ctx, 12); err != nil {
				tst.Fatalf("WriteNucleusNum failed: %v", err)
			}
			if err := ds.WriteNucleusCharge(ctx, benzeneCharge); err != nil {
				tst.Fatalf("WriteNucleusCharge failed: %v", err)
			}

			charge, err := ds.ReadNucleusCharge(ctx)
			if err != nil {
				tst.Fatalf("ReadNucleusCharge failed: %v", err)
			}
			if charge[10] != 1.0 {
				tst.Errorf("Expected charge[10] to be 1.0, got %v", charge[10])
			}

			n, err := ds.RequiredLen(ctx, "nucleus.charge")
			if err != nil || n != 12 {
				tst.Fatalf("Expected required length 12, got %d (%v)", n, err)
			}

			small := make([]float64, 5)
			if _, err := ds.ReadFloatsInto(ctx, "nucleus.charge", small); vds.Code(err) != vds.BufferTooSmall {
				tst.Errorf("Expected BufferTooSmall, got %v", err)
			}

			large := make([]float64, 60)
			n, err = ds.ReadFloatsInto(ctx, "nucleus.charge", large)
			if err != nil {
				tst.Fatalf("ReadFloatsInto failed: %v", err)
			}
			if diff := cmp.Diff(benzeneCharge, large[:n]); diff != "" {
				tst.Errorf("Unexpected charge (-want +got):\n%s", diff)
			}
		})
	}
}

// TestDataset_Parity runs one sequence of operations against every backend
// and expects the same outcome per step everywhere.
func TestDataset_Parity(t *testing.T) {
	type step struct {
		name string
		run  func(ds *vds.Dataset) error
		want vds.ExitCode
	}

	steps := []step{
		{"charge before num", func(ds *vds.Dataset) error {
			return ds.WriteNucleusCharge(context.Background(), []float64{1, 2, 3})
		}, vds.MissingDimension},
		{"required length before num", func(ds *vds.Dataset) error {
			_, err := ds.RequiredLen(context.Background(), "nucleus.charge")
			return err
		}, vds.MissingDimension},
		{"zero num", func(ds *vds.Dataset) error {
			return ds.WriteNucleusNum(context.Background(), 0)
		}, vds.InvalidArgument},
		{"num", func(ds *vds.Dataset) error {
			return ds.WriteNucleusNum(context.Background(), 3)
		}, vds.Success},
		{"short charge", func(ds *vds.Dataset) error {
			return ds.WriteNucleusCharge(context.Background(), []float64{1, 2})
		}, vds.DimensionMismatch},
		{"int charge", func(ds *vds.Dataset) error {
			return ds.WriteInts(context.Background(), "nucleus.charge", []int64{1, 2, 3})
		}, vds.TypeMismatch},
		{"scalar charge", func(ds *vds.Dataset) error {
			return ds.WriteFloat(context.Background(), "nucleus.charge", 1)
		}, vds.DimensionMismatch},
		{"charge", func(ds *vds.Dataset) error {
			return ds.WriteNucleusCharge(context.Background(), []float64{8, 1, 1})
		}, vds.Success},
		{"unknown field", func(ds *vds.Dataset) error {
			return ds.WriteString(context.Background(), "nucleus.unknown", "x")
		}, vds.UnknownField},
		{"malformed name", func(ds *vds.Dataset) error {
			return ds.WriteString(context.Background(), "nucleus", "x")
		}, vds.InvalidArgument},
		{"nil value", func(ds *vds.Dataset) error {
			return ds.Write(context.Background(), "nucleus.point_group", nil)
		}, vds.InvalidArgument},
		{"missing point group", func(ds *vds.Dataset) error {
			_, err := ds.ReadNucleusPointGroup(context.Background())
			return err
		}, vds.NotFound},
		{"point group", func(ds *vds.Dataset) error {
			return ds.WriteNucleusPointGroup(context.Background(), "C2V")
		}, vds.Success},
		{"point group overwrite", func(ds *vds.Dataset) error {
			return ds.WriteNucleusPointGroup(context.Background(), "D2H")
		}, vds.Success},
		{"array repulsion", func(ds *vds.Dataset) error {
			return ds.WriteFloats(context.Background(), "nucleus.repulsion", []float64{1, 2})
		}, vds.DimensionMismatch},
		{"num rewrite", func(ds *vds.Dataset) error {
			return ds.WriteNucleusNum(context.Background(), 3)
		}, vds.ReadOnlyViolation},
		{"uuid rewrite", func(ds *vds.Dataset) error {
			return ds.WriteString(context.Background(), "metadata.uuid", "other")
		}, vds.ReadOnlyViolation},
		{"coord", func(ds *vds.Dataset) error {
			return ds.WriteNucleusCoord(context.Background(), make([]float64, 9))
		}, vds.Success},
		{"coord without axis", func(ds *vds.Dataset) error {
			return ds.WriteNucleusCoord(context.Background(), make([]float64, 3))
		}, vds.DimensionMismatch},
		{"read label", func(ds *vds.Dataset) error {
			_, err := ds.ReadNucleusLabel(context.Background())
			return err
		}, vds.NotFound},
		{"read charge as dim", func(ds *vds.Dataset) error {
			_, err := ds.ReadDim(context.Background(), "nucleus.charge")
			return err
		}, vds.TypeMismatch},
		{"read into wrong type", func(ds *vds.Dataset) error {
			_, err := ds.ReadInto(context.Background(), "nucleus.charge", data.NewArray(data.TypeInt, []uint64{3}))
			return err
		}, vds.TypeMismatch},
	}

	want := make([]vds.ExitCode, len(steps))
	for i, s := range steps {
		want[i] = s.want
	}

	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()

			ds, err := factory(tst).Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			got := make([]vds.ExitCode, len(steps))
			for i, s := range steps {
				err := s.run(ds)
				got[i] = vds.Code(err)
				if got[i] != s.want {
					tst.Errorf("Step %q: expected %s, got %v", s.name, s.want, err)
				}
			}

			if diff := cmp.Diff(want, got); diff != "" {
				tst.Errorf("Unexpected outcome sequence (-want +got):\n%s", diff)
			}

			charge, err := ds.ReadNucleusCharge(ctx)
			if err != nil {
				tst.Fatalf("ReadNucleusCharge failed: %v", err)
			}
			if diff := cmp.Diff([]float64{8, 1, 1}, charge); diff != "" {
				tst.Errorf("Rejected writes changed nucleus.charge (-want +got):\n%s", diff)
			}
			if group, err := ds.ReadNucleusPointGroup(ctx); err != nil || group != "D2H" {
				tst.Errorf("Expected point group D2H, got %q (%v)", group, err)
			}
		})
	}
}

func TestDataset_Lifecycle(t *testing.T) {
	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			loc := factory(tst)

			if _, err := loc.Open(ctx); vds.Code(err) != vds.NotFound {
				tst.Fatalf("Expected NotFound for a missing dataset, got %v", err)
			}
			if _, err := loc.Create(ctx, vds.WithReadOnly()); vds.Code(err) != vds.InvalidArgument {
				tst.Fatalf("Expected InvalidArgument for a read-only create, got %v", err)
			}

			ds, err := loc.Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)
			first := ds.UUID()
			if first == "" {
				tst.Fatalf("Expected a uuid on a new dataset")
			}
			if err := ds.WriteNucleusNum(ctx, 2); err != nil {
				tst.Fatalf("WriteNucleusNum failed: %v", err)
			}
			if err := ds.Close(ctx); err != nil {
				tst.Fatalf("Close failed: %v", err)
			}

			if err := ds.Close(ctx); vds.Code(err) != vds.InvalidHandle {
				tst.Errorf("Expected InvalidHandle on second close, got %v", err)
			}
			if _, err := ds.ReadNucleusNum(ctx); vds.Code(err) != vds.InvalidHandle {
				tst.Errorf("Expected InvalidHandle on read after close, got %v", err)
			}
			if err := ds.WriteNucleusPointGroup(ctx, "C1"); vds.Code(err) != vds.InvalidHandle {
				tst.Errorf("Expected InvalidHandle on write after close, got %v", err)
			}

			if _, err := loc.Create(ctx); vds.Code(err) != vds.AlreadyExists {
				tst.Fatalf("Expected AlreadyExists, got %v", err)
			}
			if _, err := loc.Open(ctx, vds.WithOverwrite()); vds.Code(err) != vds.InvalidArgument {
				tst.Fatalf("Expected InvalidArgument for open with overwrite, got %v", err)
			}

			ds, err = loc.Open(ctx)
			if err != nil {
				tst.Fatalf("Open failed: %v", err)
			}
			vdstest.Track(tst, ds)
			if ds.UUID() != first {
				tst.Errorf("Expected uuid %s after reopen, got %s", first, ds.UUID())
			}
			version, err := ds.ReadMetadataPackageVersion(ctx)
			if err != nil || version != vds.Version {
				tst.Errorf("Expected package version %s, got %q (%v)", vds.Version, version, err)
			}
			if err := ds.Close(ctx); err != nil {
				tst.Fatalf("Close failed: %v", err)
			}

			ds, err = loc.Create(ctx, vds.WithOverwrite())
			if err != nil {
				tst.Fatalf("Create with overwrite failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if ds.UUID() == first {
				tst.Errorf("Expected a new uuid after overwrite")
			}
			if ok, err := ds.Has(ctx, "nucleus.num"); err != nil || ok {
				tst.Errorf("Expected nucleus.num to be gone after overwrite, got %v (%v)", ok, err)
			}
			if err := ds.WriteNucleusNum(ctx, 5); err != nil {
				tst.Errorf("Expected write-once field to be writable again, got %v", err)
			}
		})
	}
}

func TestDataset_ReadOnly(t *testing.T) {
	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			loc := factory(tst)

			ds, err := loc.Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			if err := ds.WriteNucleusRepulsion(ctx, 203.3); err != nil {
				tst.Fatalf("WriteNucleusRepulsion failed: %v", err)
			}
			if err := ds.Close(ctx); err != nil {
				tst.Fatalf("Close failed: %v", err)
			}

			ds, err = loc.Open(ctx, vds.WithReadOnly())
			if err != nil {
				tst.Fatalf("Open read-only failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if !ds.ReadOnly() {
				tst.Errorf("Expected handle to report read-only")
			}
			if err := ds.WriteNucleusRepulsion(ctx, 1); vds.Code(err) != vds.ReadOnlyDataset {
				tst.Errorf("Expected ReadOnlyDataset, got %v", err)
			}
			if v, err := ds.ReadNucleusRepulsion(ctx); err != nil || v != 203.3 {
				tst.Errorf("Expected repulsion 203.3, got %v (%v)", v, err)
			}
		})
	}
}

func TestDataset_OpenOrCreate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir() + "/dataset"

	ds, err := vds.OpenOrCreate(ctx, dir, backend.KindText)
	if err != nil {
		t.Fatalf("OpenOrCreate on a missing dataset failed: %v", err)
	}
	vdstest.Track(t, ds)
	if err := ds.WriteElectronUpNum(ctx, 21); err != nil {
		t.Fatalf("WriteElectronUpNum failed: %v", err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ds, err = vds.OpenOrCreate(ctx, dir, backend.KindText)
	if err != nil {
		t.Fatalf("OpenOrCreate on an existing dataset failed: %v", err)
	}
	vdstest.Track(t, ds)
	defer ds.Close(ctx)

	if n, err := ds.ReadElectronUpNum(ctx); err != nil || n != 21 {
		t.Errorf("Expected electron.up_num 21, got %d (%v)", n, err)
	}
	if err := ds.WriteElectronUpNum(ctx, 21); vds.Code(err) != vds.ReadOnlyViolation {
		t.Errorf("Expected ReadOnlyViolation, got %v", err)
	}

	if _, err := vds.OpenOrCreate(ctx, t.TempDir()+"/other", backend.KindText, vds.WithReadOnly()); vds.Code(err) != vds.NotFound {
		t.Errorf("Expected NotFound for a read-only open of a missing dataset, got %v", err)
	}
}

func TestReadIntsAs(t *testing.T) {
	ctx := context.Background()

	ds, err := vdstest.LocalFactories()["binary"](t).Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	vdstest.Track(t, ds)
	defer ds.Close(ctx)

	if err := ds.WriteNucleusNum(ctx, 4); err != nil {
		t.Fatalf("WriteNucleusNum failed: %v", err)
	}
	if err := ds.WriteBasisNucleusIndex(ctx, []int64{0, 1, 200, 300}); err != nil {
		t.Fatalf("WriteBasisNucleusIndex failed: %v", err)
	}

	index, err := vds.ReadIntsAs[int16](ctx, ds, "basis.nucleus_index")
	if err != nil {
		t.Fatalf("ReadIntsAs[int16] failed: %v", err)
	}
	if diff := cmp.Diff([]int16{0, 1, 200, 300}, index); diff != "" {
		t.Errorf("Unexpected index (-want +got):\n%s", diff)
	}

	if _, err := vds.ReadIntsAs[int8](ctx, ds, "basis.nucleus_index"); vds.Code(err) != vds.TypeMismatch {
		t.Errorf("Expected TypeMismatch narrowing to int8, got %v", err)
	}
	if _, err := vds.ReadIntsAs[uint8](ctx, ds, "basis.nucleus_index"); vds.Code(err) != vds.TypeMismatch {
		t.Errorf("Expected TypeMismatch narrowing to uint8, got %v", err)
	}
}

func TestDataset_CustomSchema(t *testing.T) {
	ctx := context.Background()

	points := &schema.Field{
		Key:    data.NewFieldKey("grid", "points"),
		Type:   data.TypeDim,
		Policy: schema.WriteOnce,
	}
	values := &schema.Field{
		Key:  data.NewFieldKey("grid", "values"),
		Type: data.TypeFloat,
		Dims: []schema.Dim{schema.DimOf("grid", "points"), schema.Const(2)},
	}
	custom, err := schema.New(points, values)
	if err != nil {
		t.Fatalf("schema.New failed: %v", err)
	}

	loc := vdstest.LocalFactories()["sqlite"](t)
	ds, err := loc.Create(ctx, vds.WithSchema(custom))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	vdstest.Track(t, ds)

	if err := ds.WriteNucleusNum(ctx, 1); vds.Code(err) != vds.UnknownField {
		t.Errorf("Expected UnknownField for a field outside the schema, got %v", err)
	}
	if err := ds.WriteDim(ctx, "grid.points", 2); err != nil {
		t.Fatalf("WriteDim failed: %v", err)
	}
	if err := ds.WriteFloats(ctx, "grid.values", []float64{0.5, 1.5, 2.5, 3.5}); err != nil {
		t.Fatalf("WriteFloats failed: %v", err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ds, err = loc.Open(ctx, vds.WithSchema(custom), vds.WithReadOnly())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	vdstest.Track(t, ds)
	defer ds.Close(ctx)

	value, err := ds.Read(ctx, "grid.values")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff([]uint64{2, 2}, value.Shape); diff != "" {
		t.Errorf("Unexpected shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 1.5, 2.5, 3.5}, value.Floats); diff != "" {
		t.Errorf("Unexpected values (-want +got):\n%s", diff)
	}

	fields, err := ds.Fields(ctx)
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Key.String()
	}
	want := []string{"metadata.package_version", "metadata.uuid", "grid.points", "grid.values"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Unexpected fields (-want +got):\n%s", diff)
	}
}

func TestOptions_Invalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir() + "/dataset"

	tests := []struct {
		name string
		opts []vds.Option
	}{
		{"overwrite and read-only", []vds.Option{vds.WithOverwrite(), vds.WithReadOnly()}},
		{"nil logger", []vds.Option{vds.WithLogger(nil)}},
		{"nil schema", []vds.Option{vds.WithSchema(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			if _, err := vds.Create(ctx, dir, backend.KindText, tt.opts...); vds.Code(err) != vds.InvalidArgument {
				tst.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestDataset_Address(t *testing.T) {
	ctx := context.Background()
	address := vds.FormatAddress(backend.KindBinary, t.TempDir()+"/dataset.vds")

	ds, err := vds.CreateAddress(ctx, address)
	if err != nil {
		t.Fatalf("CreateAddress failed: %v", err)
	}
	vdstest.Track(t, ds)
	if err := ds.WriteMetadataDescription(ctx, "benzene"); err != nil {
		t.Fatalf("WriteMetadataDescription failed: %v", err)
	}
	if err := ds.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ds, err = vds.OpenAddress(ctx, address, vds.WithReadOnly())
	if err != nil {
		t.Fatalf("OpenAddress failed: %v", err)
	}
	vdstest.Track(t, ds)
	defer ds.Close(ctx)

	if ds.Backend() != "binary" {
		t.Errorf("Expected binary backend, got %s", ds.Backend())
	}
	if !ds.Capabilities().Contains(backend.CapabilityInPlaceUpdate) {
		t.Errorf("Expected in-place update capability")
	}
	if desc, err := ds.ReadMetadataDescription(ctx); err != nil || desc != "benzene" {
		t.Errorf("Expected description benzene, got %q (%v)", desc, err)
	}

	if _, err := vds.OpenAddress(ctx, "hdf5://dataset.h5"); vds.Code(err) != vds.UnsupportedBackend {
		t.Errorf("Expected UnsupportedBackend, got %v", err)
	}
}

func TestDataset_StaleDimension(t *testing.T) {
	points := &schema.Field{
		Key:    data.NewFieldKey("grid", "points"),
		Type:   data.TypeDim,
		Policy: schema.Overwrite,
	}
	values := &schema.Field{
		Key:  data.NewFieldKey("grid", "values"),
		Type: data.TypeFloat,
		Dims: []schema.Dim{schema.DimOf("grid", "points")},
	}
	custom, err := schema.New(points, values)
	if err != nil {
		t.Fatalf("schema.New failed: %v", err)
	}

	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()

			ds, err := factory(tst).Create(ctx, vds.WithSchema(custom))
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if err := ds.WriteDim(ctx, "grid.points", 2); err != nil {
				tst.Fatalf("WriteDim failed: %v", err)
			}
			if err := ds.WriteFloats(ctx, "grid.values", []float64{0.5, 1.5}); err != nil {
				tst.Fatalf("WriteFloats failed: %v", err)
			}
			if err := ds.WriteDim(ctx, "grid.points", 3); err != nil {
				tst.Fatalf("WriteDim failed: %v", err)
			}

			if _, err := ds.Read(ctx, "grid.values"); vds.Code(err) != vds.DimensionMismatch {
				tst.Errorf("Expected DimensionMismatch from Read, got %v", err)
			}

			buf := data.NewArray(data.TypeFloat, []uint64{3})
			if _, err := ds.ReadInto(ctx, "grid.values", buf); vds.Code(err) != vds.DimensionMismatch {
				tst.Errorf("Expected DimensionMismatch from ReadInto, got %v", err)
			}
		})
	}
}

func TestDataset_ReadIntoLargerBuffer(t *testing.T) {
	ctx := context.Background()

	ds, err := vdstest.LocalFactories()["kv"](t).Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	vdstest.Track(t, ds)
	defer ds.Close(ctx)

	if err := ds.WriteNucleusNum(ctx, 2); err != nil {
		t.Fatalf("WriteNucleusNum failed: %v", err)
	}
	if err := ds.WriteNucleusCharge(ctx, []float64{8, 1}); err != nil {
		t.Fatalf("WriteNucleusCharge failed: %v", err)
	}

	buf := data.FloatArray([]float64{-1, -1, -1, -1})
	n, err := ds.ReadInto(ctx, "nucleus.charge", buf)
	if err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 elements written, got %d", n)
	}
	if diff := cmp.Diff([]float64{8, 1, -1, -1}, buf.Floats); diff != "" {
		t.Errorf("Unexpected buffer (-want +got):\n%s", diff)
	}

	small := data.FloatArray([]float64{0})
	if _, err := ds.ReadInto(ctx, "nucleus.charge", small); vds.Code(err) != vds.BufferTooSmall {
		t.Errorf("Expected BufferTooSmall, got %v", err)
	}
}

func TestDataset_Keys(t *testing.T) {
	for name, factory := range vdstest.LocalFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()

			ds, err := factory(tst).Create(ctx)
			if err != nil {
				tst.Fatalf("Create failed: %v", err)
			}
			vdstest.Track(tst, ds)
			defer ds.Close(ctx)

			if err := ds.WriteNucleusNum(ctx, 1); err != nil {
				tst.Fatalf("WriteNucleusNum failed: %v", err)
			}
			if err := ds.WriteNucleusCharge(ctx, []float64{1}); err != nil {
				tst.Fatalf("WriteNucleusCharge failed: %v", err)
			}

			keys, err := ds.Keys(ctx)
			if err != nil {
				tst.Fatalf("Keys failed: %v", err)
			}
			names := make([]string, len(keys))
			for i, key := range keys {
				names[i] = key.String()
			}
			want := []string{"metadata.package_version", "metadata.uuid", "nucleus.charge", "nucleus.num"}
			if diff := cmp.Diff(want, names); diff != "" {
				tst.Errorf("Unexpected keys (-want +got):\n%s", diff)
			}
		})
	}
}

// failingStore rejects every write of a key containing fail.
type failingStore struct {
	*kv.MemoryStore
	fail string
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if strings.Contains(key, s.fail) {
		return errors.New("write rejected")
	}
	return s.MemoryStore.Put(ctx, key, value)
}

func TestDataset_CreateRemovesPartialDataset(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: kv.NewMemoryStore(), fail: "uuid"}

	_, err := vds.CreateBackend(ctx, kv.NewKVBackend(store))
	if vds.Code(err) != vds.BackendIOError {
		t.Fatalf("Expected BackendIOError, got %v", err)
	}

	keys, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected an empty store after the failed create, got %v", keys)
	}

	store.fail = "\x00"
	ds, err := vds.CreateBackend(ctx, kv.NewKVBackend(store))
	if err != nil {
		t.Fatalf("Create after cleanup failed: %v", err)
	}
	vdstest.Track(t, ds)
	if err := ds.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

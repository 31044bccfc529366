package vds_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mwantia/vds"
	"github.com/mwantia/vds/vdstest"
)

func TestCopy(t *testing.T) {
	ctx := context.Background()
	factories := vdstest.LocalFactories()

	src, err := factories["text"](t).Create(ctx)
	if err != nil {
		t.Fatalf("Create source failed: %v", err)
	}
	vdstest.Track(t, src)
	defer src.Close(ctx)

	if err := src.WriteNucleusNum(ctx, 12); err != nil {
		t.Fatalf("WriteNucleusNum failed: %v", err)
	}
	if err := src.WriteNucleusCharge(ctx, benzeneCharge); err != nil {
		t.Fatalf("WriteNucleusCharge failed: %v", err)
	}
	if err := src.WriteNucleusCoord(ctx, benzeneCoord); err != nil {
		t.Fatalf("WriteNucleusCoord failed: %v", err)
	}
	if err := src.WriteNucleusLabel(ctx, []string{"C", "C", "C", "C", "C", "C", "H", "H", "H", "H", "H", "H"}); err != nil {
		t.Fatalf("WriteNucleusLabel failed: %v", err)
	}
	if err := src.WriteNucleusPointGroup(ctx, "D6H"); err != nil {
		t.Fatalf("WriteNucleusPointGroup failed: %v", err)
	}

	for _, name := range []string{"binary", "sqlite", "kv"} {
		t.Run(name, func(tst *testing.T) {
			dst, err := factories[name](tst).Create(ctx)
			if err != nil {
				tst.Fatalf("Create destination failed: %v", err)
			}
			vdstest.Track(tst, dst)
			defer dst.Close(ctx)

			n, err := vds.Copy(ctx, dst, src)
			if err != nil {
				tst.Fatalf("Copy failed: %v", err)
			}
			if n != 5 {
				tst.Errorf("Expected 5 copied fields, got %d", n)
			}
			if dst.UUID() == src.UUID() {
				tst.Errorf("Expected the destination to keep its own uuid")
			}

			for _, field := range []string{"nucleus.num", "nucleus.charge", "nucleus.coord", "nucleus.label", "nucleus.point_group"} {
				want, err := src.Read(ctx, field)
				if err != nil {
					tst.Fatalf("Read %s from source failed: %v", field, err)
				}
				got, err := dst.Read(ctx, field)
				if err != nil {
					tst.Fatalf("Read %s from destination failed: %v", field, err)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					tst.Errorf("Unexpected %s (-want +got):\n%s", field, diff)
				}
			}

			if _, err := vds.Copy(ctx, dst, src); vds.Code(err) != vds.ReadOnlyViolation {
				tst.Errorf("Expected ReadOnlyViolation copying twice, got %v", err)
			}
		})
	}

	if _, err := vds.Copy(ctx, src, src); vds.Code(err) != vds.InvalidArgument {
		t.Errorf("Expected InvalidArgument copying onto itself, got %v", err)
	}
}

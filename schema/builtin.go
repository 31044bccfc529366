package schema

import "github.com/mwantia/vds/data"

// Built-in groups.
const (
	GroupMetadata = "metadata"
	GroupNucleus  = "nucleus"
	GroupBasis    = "basis"
	GroupElectron = "electron"
)

var (
	MetadataPackageVersion = scalar(GroupMetadata, "package_version", data.TypeString, Overwrite, "version of the library that created the dataset")
	MetadataUUID           = scalar(GroupMetadata, "uuid", data.TypeString, WriteOnce, "unique identifier assigned at creation")
	MetadataDescription    = scalar(GroupMetadata, "description", data.TypeString, Overwrite, "free-form description")

	NucleusNum        = scalar(GroupNucleus, "num", data.TypeDim, WriteOnce, "number of nuclei")
	NucleusCharge     = array(GroupNucleus, "charge", data.TypeFloat, []Dim{DimOf(GroupNucleus, "num")}, "nuclear charges")
	NucleusCoord      = array(GroupNucleus, "coord", data.TypeFloat, []Dim{DimOf(GroupNucleus, "num"), Const(3)}, "cartesian coordinates")
	NucleusLabel      = array(GroupNucleus, "label", data.TypeString, []Dim{DimOf(GroupNucleus, "num")}, "atom labels")
	NucleusPointGroup = scalar(GroupNucleus, "point_group", data.TypeString, Overwrite, "symmetry point group")
	NucleusRepulsion  = scalar(GroupNucleus, "repulsion", data.TypeFloat, Overwrite, "nuclear repulsion energy")

	BasisNucleusIndex = array(GroupBasis, "nucleus_index", data.TypeInt, []Dim{DimOf(GroupNucleus, "num")}, "index of the first shell of each nucleus")

	ElectronUpNum = scalar(GroupElectron, "up_num", data.TypeDim, WriteOnce, "number of spin-up electrons")
	ElectronDnNum = scalar(GroupElectron, "dn_num", data.TypeDim, WriteOnce, "number of spin-down electrons")
)

func metadataFields() []*Field {
	return []*Field{
		MetadataPackageVersion,
		MetadataUUID,
		MetadataDescription,
	}
}

var defaultSchema = MustNew(
	NucleusNum,
	NucleusCharge,
	NucleusCoord,
	NucleusLabel,
	NucleusPointGroup,
	NucleusRepulsion,
	BasisNucleusIndex,
	ElectronUpNum,
	ElectronDnNum,
)

// Default returns the built-in schema.
func Default() *Schema {
	return defaultSchema
}

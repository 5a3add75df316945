package cloth

import "github.com/san-kum/clothsim/internal/team"

// Capabilities select which parts of the shared setup a variant runs.
type Capabilities struct {
	HasMeshTopology        bool
	SupportsTriangleBend   bool
	RequiresRotationAdjust bool
}

// CapabilitiesOf returns the fixed capability set of a cloth kind.
func CapabilitiesOf(k team.Kind) Capabilities {
	switch k {
	case team.KindBoneCloth:
		return Capabilities{SupportsTriangleBend: true}
	case team.KindMeshCloth:
		return Capabilities{HasMeshTopology: true, SupportsTriangleBend: true}
	case team.KindBoneSpring:
		return Capabilities{RequiresRotationAdjust: true}
	case team.KindMeshSpring:
		return Capabilities{HasMeshTopology: true, RequiresRotationAdjust: true}
	}
	return Capabilities{}
}

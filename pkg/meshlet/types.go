package meshlet

import "fmt"

// AttributeKind identifies a vertex attribute slot in a mesh header.
type AttributeKind uint8

const (
	AttributePosition AttributeKind = iota
	AttributeNormal
	AttributeTexCoord
	AttributeTangent
	AttributeBitangent

	AttributeCount = 5
)

// Semantic names used in input layouts.
const (
	SemanticPosition  = "POSITION"
	SemanticNormal    = "NORMAL"
	SemanticTexCoord  = "TEXCOORD"
	SemanticTangent   = "TANGENT"
	SemanticBitangent = "BITANGENT"
)

var attributeSemantics = [AttributeCount]string{
	SemanticPosition,
	SemanticNormal,
	SemanticTexCoord,
	SemanticTangent,
	SemanticBitangent,
}

var attributeFormats = [AttributeCount]Format{
	FormatR32G32B32Float,
	FormatR32G32B32Float,
	FormatR32G32Float,
	FormatR32G32B32Float,
	FormatR32G32B32Float,
}

// String returns the attribute name.
func (k AttributeKind) String() string {
	switch k {
	case AttributePosition:
		return "Position"
	case AttributeNormal:
		return "Normal"
	case AttributeTexCoord:
		return "TexCoord"
	case AttributeTangent:
		return "Tangent"
	case AttributeBitangent:
		return "Bitangent"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Semantic returns the input-layout semantic name for the attribute.
func (k AttributeKind) Semantic() string {
	if k >= AttributeCount {
		return ""
	}
	return attributeSemantics[k]
}

// Format returns the fixed element format of the attribute.
func (k AttributeKind) Format() Format {
	if k >= AttributeCount {
		return FormatUnknown
	}
	return attributeFormats[k]
}

// Size returns the per-element byte size of the attribute.
func (k AttributeKind) Size() uint32 {
	return k.Format().Size()
}

// Format is a vertex element format. Values match the DXGI enumeration.
type Format uint32

const (
	FormatUnknown        Format = 0
	FormatR32G32B32Float Format = 6
	FormatR32G32Float    Format = 16
)

// Size returns the byte size of one element of the format.
func (f Format) Size() uint32 {
	switch f {
	case FormatR32G32B32Float:
		return 12
	case FormatR32G32Float:
		return 8
	default:
		return 0
	}
}

// Components returns the number of float components.
func (f Format) Components() int {
	return int(f.Size() / 4)
}

func (f Format) String() string {
	switch f {
	case FormatR32G32B32Float:
		return "R32G32B32_FLOAT"
	case FormatR32G32Float:
		return "R32G32_FLOAT"
	case FormatUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
}

// InputElement describes one attribute in a mesh's input layout.
type InputElement struct {
	SemanticName  string
	SemanticIndex uint32
	Format        Format
	InputSlot     uint32
}

// Meshlet is a chunk of a mesh sized to fit a single mesh-shader threadgroup.
type Meshlet struct {
	VertCount  uint32
	VertOffset uint32
	PrimCount  uint32
	PrimOffset uint32
}

// Subset is a contiguous {Offset, Count} range of indices or meshlets.
type Subset struct {
	Offset uint32
	Count  uint32
}

// PackedTriangle stores three 10-bit vertex indices in bits 0-9, 10-19 and 20-29.
type PackedTriangle uint32

// PackTriangle packs three indices. Each index is truncated to 10 bits.
func PackTriangle(i0, i1, i2 uint32) PackedTriangle {
	return PackedTriangle(i0&0x3FF | (i1&0x3FF)<<10 | (i2&0x3FF)<<20)
}

// Indices unpacks the triangle.
func (t PackedTriangle) Indices() (i0, i1, i2 uint32) {
	v := uint32(t)
	return v & 0x3FF, (v >> 10) & 0x3FF, (v >> 20) & 0x3FF
}

// CullData is per-meshlet culling metadata, carried verbatim from the file.
type CullData struct {
	BoundingSphere [4]float32 // xyz = center, w = radius
	NormalCone     [4]uint8   // xyz = axis, w = -cos(a + 90)
	ApexOffset     float32    // apex = center - axis * offset
}

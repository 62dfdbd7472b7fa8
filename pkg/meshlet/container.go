// Package meshlet loads meshlet model containers and assembles typed,
// bounds-checked views over their raw payload.
//
// A container is a little-endian, packed binary file:
//
//	Header                       24 bytes
//	MeshHeader[MeshCount]        48 bytes each
//	Accessor[AccessorCount]      20 bytes each
//	BufferView[BufferViewCount]   8 bytes each
//	Buffer[BufferSize]           raw payload
//
// Meshes reference accessors, accessors reference buffer views, and buffer
// views reference byte ranges of the payload.
package meshlet

import "encoding/binary"

// Container format constants.
const (
	// Prolog is the multi-character constant 'MSHL'. On disk it appears as
	// the bytes "LHSM".
	Prolog uint32 = 0x4D53484C

	// Version is the only supported container version.
	Version uint32 = 0

	HeaderSize     = 24
	MeshHeaderSize = 12 * 4
	AccessorSize   = 5 * 4
	BufferViewSize = 2 * 4

	// absentIndex marks a missing attribute accessor in the on-disk mesh header.
	absentIndex uint32 = 0xFFFFFFFF
)

// Header is the fixed-size container header.
type Header struct {
	Prolog          uint32
	Version         uint32
	MeshCount       uint32
	AccessorCount   uint32
	BufferViewCount uint32
	BufferSize      uint32
}

// OptionalIndex is an accessor index that may be absent.
type OptionalIndex struct {
	Index uint32
	Valid bool
}

// Some returns a present index.
func Some(i uint32) OptionalIndex {
	return OptionalIndex{Index: i, Valid: true}
}

// None is the absent index.
var None = OptionalIndex{}

// Get returns the index and whether it is present.
func (o OptionalIndex) Get() (uint32, bool) {
	return o.Index, o.Valid
}

func (o OptionalIndex) encode() uint32 {
	if !o.Valid {
		return absentIndex
	}
	return o.Index
}

func decodeOptional(v uint32) OptionalIndex {
	if v == absentIndex {
		return None
	}
	return Some(v)
}

// MeshHeader holds the accessor indices that make up one mesh.
type MeshHeader struct {
	Indices             uint32
	IndexSubsets        uint32
	Attributes          [AttributeCount]OptionalIndex
	Meshlets            uint32
	MeshletSubsets      uint32
	UniqueVertexIndices uint32
	PrimitiveIndices    uint32
	CullData            uint32
}

// Accessor describes how to read Count elements of Stride bytes out of the
// Size bytes starting Offset bytes into a buffer view.
type Accessor struct {
	BufferView uint32
	Offset     uint32
	Size       uint32
	Stride     uint32
	Count      uint32
}

// BufferView is a contiguous byte range of the container payload.
type BufferView struct {
	Offset uint32
	Size   uint32
}

// Container is a parsed, unresolved meshlet container.
type Container struct {
	Header      Header
	Meshes      []MeshHeader
	Accessors   []Accessor
	BufferViews []BufferView
	Buffer      []byte
}

func decodeHeader(b []byte) Header {
	le := binary.LittleEndian
	return Header{
		Prolog:          le.Uint32(b[0:]),
		Version:         le.Uint32(b[4:]),
		MeshCount:       le.Uint32(b[8:]),
		AccessorCount:   le.Uint32(b[12:]),
		BufferViewCount: le.Uint32(b[16:]),
		BufferSize:      le.Uint32(b[20:]),
	}
}

func encodeHeader(b []byte, h Header) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], h.Prolog)
	le.PutUint32(b[4:], h.Version)
	le.PutUint32(b[8:], h.MeshCount)
	le.PutUint32(b[12:], h.AccessorCount)
	le.PutUint32(b[16:], h.BufferViewCount)
	le.PutUint32(b[20:], h.BufferSize)
}

func decodeMeshHeader(b []byte) MeshHeader {
	le := binary.LittleEndian
	h := MeshHeader{
		Indices:      le.Uint32(b[0:]),
		IndexSubsets: le.Uint32(b[4:]),
	}
	for i := range h.Attributes {
		h.Attributes[i] = decodeOptional(le.Uint32(b[8+4*i:]))
	}
	h.Meshlets = le.Uint32(b[28:])
	h.MeshletSubsets = le.Uint32(b[32:])
	h.UniqueVertexIndices = le.Uint32(b[36:])
	h.PrimitiveIndices = le.Uint32(b[40:])
	h.CullData = le.Uint32(b[44:])
	return h
}

func encodeMeshHeader(b []byte, h MeshHeader) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], h.Indices)
	le.PutUint32(b[4:], h.IndexSubsets)
	for i, a := range h.Attributes {
		le.PutUint32(b[8+4*i:], a.encode())
	}
	le.PutUint32(b[28:], h.Meshlets)
	le.PutUint32(b[32:], h.MeshletSubsets)
	le.PutUint32(b[36:], h.UniqueVertexIndices)
	le.PutUint32(b[40:], h.PrimitiveIndices)
	le.PutUint32(b[44:], h.CullData)
}

func decodeAccessor(b []byte) Accessor {
	le := binary.LittleEndian
	return Accessor{
		BufferView: le.Uint32(b[0:]),
		Offset:     le.Uint32(b[4:]),
		Size:       le.Uint32(b[8:]),
		Stride:     le.Uint32(b[12:]),
		Count:      le.Uint32(b[16:]),
	}
}

func encodeAccessor(b []byte, a Accessor) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], a.BufferView)
	le.PutUint32(b[4:], a.Offset)
	le.PutUint32(b[8:], a.Size)
	le.PutUint32(b[12:], a.Stride)
	le.PutUint32(b[16:], a.Count)
}

func decodeBufferView(b []byte) BufferView {
	le := binary.LittleEndian
	return BufferView{Offset: le.Uint32(b[0:]), Size: le.Uint32(b[4:])}
}

func encodeBufferView(b []byte, v BufferView) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], v.Offset)
	le.PutUint32(b[4:], v.Size)
}

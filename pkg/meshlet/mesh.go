package meshlet

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Mesh holds views into its model's payload. It owns no payload bytes.
type Mesh struct {
	// Layout lists one element per present attribute, in attribute order.
	// Attributes sharing a buffer view share an input slot.
	Layout []InputElement

	// VertexViews holds one region per input slot; VertexStrides matches it.
	VertexViews   []Region
	VertexStrides []uint32
	VertexCount   uint32

	Indices      View
	IndexSize    uint32
	IndexCount   uint32
	IndexSubsets Span[Subset]

	Meshlets            Span[Meshlet]
	MeshletSubsets      Span[Subset]
	UniqueVertexIndices View
	PrimitiveIndices    Span[PackedTriangle]
	CullData            Span[CullData]

	BoundingSphere Sphere

	gpu map[BufferKey]Handle
}

// NumVertexViews returns the number of distinct vertex buffers.
func (m *Mesh) NumVertexViews() int {
	return len(m.VertexViews)
}

// ElementOffset finds the layout element with the given semantic name and
// returns its input slot and byte offset inside a vertex of that slot. The
// offset is the sum of the format sizes of the elements declared before it in
// the same slot.
func (m *Mesh) ElementOffset(semantic string) (slot, offset uint32, ok bool) {
	i := slices.IndexFunc(m.Layout, func(e InputElement) bool {
		return e.SemanticName == semantic
	})
	if i < 0 {
		return 0, 0, false
	}

	slot = m.Layout[i].InputSlot
	for _, e := range m.Layout[:i] {
		if e.InputSlot == slot {
			offset += e.Format.Size()
		}
	}
	return slot, offset, true
}

// AssembleMesh builds the views for one mesh header. index is only used for
// error context. Either the whole mesh is assembled or an *AssetCorruptError
// is returned.
func AssembleMesh(index int, h MeshHeader, accessors []Accessor, bufferViews []BufferView, arena *Arena) (*Mesh, error) {
	m := &Mesh{}

	// Indices
	idx, err := Resolve(accessors, bufferViews, arena, h.Indices)
	if err != nil {
		return nil, corrupt(index, PartIndices, err)
	}
	if idx.Stride != 2 && idx.Stride != 4 {
		return nil, corrupt(index, PartIndices, fmt.Errorf("%w: got %d", ErrInvalidIndexSize, idx.Stride))
	}
	if uint64(idx.Count)*uint64(idx.Stride) > uint64(idx.Size()) {
		return nil, corrupt(index, PartIndices, fmt.Errorf("%w: %d indices of %d bytes in %d bytes",
			ErrRangeOverflow, idx.Count, idx.Stride, idx.Size()))
	}
	m.Indices = idx
	m.IndexSize = idx.Stride
	m.IndexCount = idx.Count

	m.IndexSubsets, err = resolveSpan[Subset](accessors, bufferViews, arena, h.IndexSubsets)
	if err != nil {
		return nil, corrupt(index, PartIndexSubsets, err)
	}

	if err := m.assembleVertices(index, h, accessors, bufferViews, arena); err != nil {
		return nil, err
	}

	// Meshlet data
	m.Meshlets, err = resolveSpan[Meshlet](accessors, bufferViews, arena, h.Meshlets)
	if err != nil {
		return nil, corrupt(index, PartMeshlets, err)
	}
	m.MeshletSubsets, err = resolveSpan[Subset](accessors, bufferViews, arena, h.MeshletSubsets)
	if err != nil {
		return nil, corrupt(index, PartMeshletSubsets, err)
	}
	m.UniqueVertexIndices, err = Resolve(accessors, bufferViews, arena, h.UniqueVertexIndices)
	if err != nil {
		return nil, corrupt(index, PartUniqueVertexIndices, err)
	}
	m.PrimitiveIndices, err = resolveSpan[PackedTriangle](accessors, bufferViews, arena, h.PrimitiveIndices)
	if err != nil {
		return nil, corrupt(index, PartPrimitiveIndices, err)
	}
	m.CullData, err = resolveSpan[CullData](accessors, bufferViews, arena, h.CullData)
	if err != nil {
		return nil, corrupt(index, PartCullData, err)
	}

	return m, nil
}

// assembleVertices resolves the attribute accessors. The first attribute that
// references a buffer view allocates an input slot for it; later attributes
// on the same buffer view reuse that slot.
func (m *Mesh) assembleVertices(index int, h MeshHeader, accessors []Accessor, bufferViews []BufferView, arena *Arena) error {
	slotViews := make([]uint32, 0, AttributeCount)

	for kind := AttributeKind(0); kind < AttributeCount; kind++ {
		accIdx, ok := h.Attributes[kind].Get()
		if !ok {
			continue
		}

		attrErr := func(err error) error {
			return &AssetCorruptError{Mesh: index, Part: PartAttribute, Attribute: kind, Err: err}
		}

		v, err := Resolve(accessors, bufferViews, arena, accIdx)
		if err != nil {
			return attrErr(err)
		}

		slot := slices.Index(slotViews, v.BufferView)
		if slot < 0 {
			if v.Stride == 0 {
				return attrErr(fmt.Errorf("%w: vertex stride is zero", ErrInvalidStride))
			}
			region, err := ResolveBufferView(bufferViews, arena, v.BufferView)
			if err != nil {
				return attrErr(err)
			}

			slot = len(slotViews)
			slotViews = append(slotViews, v.BufferView)
			m.VertexViews = append(m.VertexViews, region)
			m.VertexStrides = append(m.VertexStrides, v.Stride)
			if slot == 0 {
				m.VertexCount = region.Size() / v.Stride
			}
		}

		m.Layout = append(m.Layout, InputElement{
			SemanticName:  kind.Semantic(),
			SemanticIndex: 0,
			Format:        kind.Format(),
			InputSlot:     uint32(slot),
		})
	}
	return nil
}

// GetPrimitive unpacks triangle index of the primitive index span.
func GetPrimitive(prims Span[PackedTriangle], index uint32) (i0, i1, i2 uint32, err error) {
	t, err := prims.At(int(index))
	if err != nil {
		return 0, 0, 0, err
	}
	i0, i1, i2 = t.Indices()
	return i0, i1, i2, nil
}

// GetVertexIndex reads the index-th 2- or 4-byte vertex index of view.
func GetVertexIndex(view View, index, indexSize uint32) (uint32, error) {
	if indexSize != 2 && indexSize != 4 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidIndexSize, indexSize)
	}
	b := view.Bytes()
	if b == nil && view.Size() > 0 {
		return 0, ErrReleased
	}
	off := uint64(index) * uint64(indexSize)
	if off+uint64(indexSize) > uint64(len(b)) {
		return 0, fmt.Errorf("%w: vertex index %d of %d", ErrIndexOutOfRange, index, uint64(len(b))/uint64(indexSize))
	}
	if indexSize == 4 {
		return binary.LittleEndian.Uint32(b[off:]), nil
	}
	return uint32(binary.LittleEndian.Uint16(b[off:])), nil
}

// LastMeshletPackCount returns how many copies of the last meshlet of subset
// subsetIndex fit in one threadgroup of maxVerts vertices and maxPrims
// primitives. It returns 0 when there is nothing to pack.
func LastMeshletPackCount(meshlets Span[Meshlet], subsets Span[Subset], subsetIndex, maxVerts, maxPrims uint32) (uint32, error) {
	if meshlets.Len() == 0 || subsets.Len() == 0 {
		return 0, nil
	}

	subset, err := subsets.At(int(subsetIndex))
	if err != nil {
		return 0, fmt.Errorf("meshlet subset: %w", err)
	}
	if subset.Count == 0 {
		return 0, nil
	}

	last := uint64(subset.Offset) + uint64(subset.Count) - 1
	if last >= uint64(meshlets.Len()) {
		return 0, fmt.Errorf("%w: subset %d ends at meshlet %d of %d",
			ErrIndexOutOfRange, subsetIndex, last, meshlets.Len())
	}
	meshlet, err := meshlets.At(int(last))
	if err != nil {
		return 0, err
	}
	if meshlet.VertCount == 0 || meshlet.PrimCount == 0 {
		return 0, nil
	}

	return min(maxVerts/meshlet.VertCount, maxPrims/meshlet.PrimCount), nil
}

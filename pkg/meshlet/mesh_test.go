package meshlet

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assemble(t *testing.T, c *Container, mesh int) (*Mesh, error) {
	t.Helper()
	return AssembleMesh(mesh, c.Meshes[mesh], c.Accessors, c.BufferViews, NewArena(c.Buffer))
}

func TestAssembleMeshInterleaved(t *testing.T) {
	c := triangleContainer(t)
	m, err := assemble(t, c, 0)
	require.NoError(t, err)

	assert.Equal(t, []InputElement{
		{SemanticName: SemanticPosition, Format: FormatR32G32B32Float, InputSlot: 0},
		{SemanticName: SemanticNormal, Format: FormatR32G32B32Float, InputSlot: 0},
	}, m.Layout)
	assert.Equal(t, 1, m.NumVertexViews())
	assert.Equal(t, []uint32{24}, m.VertexStrides)
	assert.Equal(t, uint32(2), m.VertexCount)
	assert.Equal(t, triangleParts().vertices, m.VertexViews[0].Bytes())

	assert.Equal(t, uint32(2), m.IndexSize)
	assert.Equal(t, uint32(3), m.IndexCount)
	assert.Equal(t, 1, m.IndexSubsets.Len())
	assert.Equal(t, 1, m.Meshlets.Len())
	assert.Equal(t, 1, m.MeshletSubsets.Len())
	assert.Equal(t, 1, m.PrimitiveIndices.Len())
	assert.Equal(t, 1, m.CullData.Len())

	cull, err := m.CullData.At(0)
	require.NoError(t, err)
	assert.Equal(t, triangleParts().cullData[0], cull)
}

func TestAssembleMeshSharedSlots(t *testing.T) {
	b := NewContainerBuilder()

	// Positions on their own; normals and texcoords interleaved in a second view.
	posView := b.AddBufferView(f32bytes(0, 0, 0, 1, 0, 0, 0, 1, 0))
	ntView := b.AddBufferView(f32bytes(
		0, 0, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 1, 0, 1,
	))
	pos := b.AddAccessor(Accessor{BufferView: posView, Size: 36, Stride: 12, Count: 3})
	nrm := b.AddAccessor(Accessor{BufferView: ntView, Size: 60, Stride: 20, Count: 3})
	uv := b.AddAccessor(Accessor{BufferView: ntView, Offset: 12, Size: 48, Stride: 20, Count: 3})

	p := triangleParts()
	p.indices = u16bytes(0, 1, 2)
	h := addTopology(t, b, p)
	h.Attributes[AttributePosition] = Some(pos)
	h.Attributes[AttributeNormal] = Some(nrm)
	h.Attributes[AttributeTexCoord] = Some(uv)
	b.AddMesh(h)

	m, err := assemble(t, b.Build(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumVertexViews())
	assert.Equal(t, []uint32{12, 20}, m.VertexStrides)
	assert.Equal(t, uint32(3), m.VertexCount)

	slots := make([]uint32, len(m.Layout))
	for i, e := range m.Layout {
		slots[i] = e.InputSlot
	}
	assert.Equal(t, []uint32{0, 1, 1}, slots)
	assert.Equal(t, FormatR32G32Float, m.Layout[2].Format)
	assert.Equal(t, SemanticTexCoord, m.Layout[2].SemanticName)

	slot, off, ok := m.ElementOffset(SemanticTexCoord)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), slot)
	assert.Equal(t, uint32(12), off)

	slot, off, ok = m.ElementOffset(SemanticPosition)
	assert.True(t, ok)
	assert.Zero(t, slot)
	assert.Zero(t, off)

	_, _, ok = m.ElementOffset(SemanticTangent)
	assert.False(t, ok)
}

func TestAssembleMeshSlotPerView(t *testing.T) {
	b := NewContainerBuilder()

	h := addTopology(t, b, triangleParts())
	views := 0
	for k := AttributeKind(0); k < AttributeCount; k++ {
		size := k.Size()
		view := b.AddBufferView(make([]byte, 2*size))
		h.Attributes[k] = Some(b.AddAccessor(Accessor{BufferView: view, Size: 2 * size, Stride: size, Count: 2}))
		views++
	}
	b.AddMesh(h)

	m, err := assemble(t, b.Build(), 0)
	require.NoError(t, err)
	assert.Equal(t, views, m.NumVertexViews())
	assert.Len(t, m.Layout, int(AttributeCount))
	for i, e := range m.Layout {
		assert.Equal(t, uint32(i), e.InputSlot)
		assert.Equal(t, AttributeKind(i).Semantic(), e.SemanticName)
	}
}

func TestAssembleMeshErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Container)
		part   Part
		want   error
	}{
		{
			name:   "meshlets accessor out of range",
			modify: func(c *Container) { c.Meshes[0].Meshlets = 999 },
			part:   PartMeshlets,
			want:   ErrIndexOutOfRange,
		},
		{
			name: "index size 3",
			modify: func(c *Container) {
				c.Accessors[c.Meshes[0].Indices].Stride = 3
			},
			part: PartIndices,
			want: ErrInvalidIndexSize,
		},
		{
			name: "more indices than bytes",
			modify: func(c *Container) {
				c.Accessors[c.Meshes[0].Indices].Count = 4
			},
			part: PartIndices,
			want: ErrRangeOverflow,
		},
		{
			name: "normal one byte past its buffer view",
			modify: func(c *Container) {
				nrm, _ := c.Meshes[0].Attributes[AttributeNormal].Get()
				c.Accessors[nrm].Size++
			},
			part: PartAttribute,
			want: ErrRangeOverflow,
		},
		{
			name: "zero vertex stride",
			modify: func(c *Container) {
				pos, _ := c.Meshes[0].Attributes[AttributePosition].Get()
				c.Accessors[pos].Stride = 0
				c.Accessors[pos].Count = 1
			},
			part: PartAttribute,
			want: ErrInvalidStride,
		},
		{
			name: "cull data buffer view past payload",
			modify: func(c *Container) {
				bv := c.Accessors[c.Meshes[0].CullData].BufferView
				c.BufferViews[bv].Size += 4
			},
			part: PartCullData,
			want: ErrRangeOverflow,
		},
		{
			name: "primitive stride below element",
			modify: func(c *Container) {
				c.Accessors[c.Meshes[0].PrimitiveIndices].Stride = 2
			},
			part: PartPrimitiveIndices,
			want: ErrInvalidStride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := triangleContainer(t)
			tt.modify(c)

			m, err := assemble(t, c, 0)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrAssetCorrupt)
			assert.ErrorIs(t, err, tt.want)

			var ce *AssetCorruptError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, 0, ce.Mesh)
			assert.Equal(t, tt.part, ce.Part)
		})
	}
}

func TestAssetCorruptErrorMessage(t *testing.T) {
	err := &AssetCorruptError{Mesh: 3, Part: PartAttribute, Attribute: AttributeTangent, Err: ErrRangeOverflow}
	assert.Equal(t, "mesh 3: attribute Tangent: range exceeds backing storage", err.Error())

	err = &AssetCorruptError{Mesh: 1, Part: PartMeshlets, Err: ErrIndexOutOfRange}
	assert.Equal(t, "mesh 1: meshlets: index out of range", err.Error())
}

func TestPackedTriangle(t *testing.T) {
	tests := []struct {
		i0, i1, i2 uint32
		packed     uint32
	}{
		{0, 0, 0, 0},
		{1, 2, 3, 1 | 2<<10 | 3<<20},
		{1023, 1023, 1023, 0x3FFFFFFF},
		{63, 0, 17, 63 | 17<<20},
	}

	for _, tt := range tests {
		p := PackTriangle(tt.i0, tt.i1, tt.i2)
		if uint32(p) != tt.packed {
			t.Errorf("PackTriangle(%d, %d, %d) = 0x%08X, want 0x%08X", tt.i0, tt.i1, tt.i2, uint32(p), tt.packed)
		}
		i0, i1, i2 := p.Indices()
		if i0 != tt.i0 || i1 != tt.i1 || i2 != tt.i2 {
			t.Errorf("Indices() = %d, %d, %d", i0, i1, i2)
		}
	}
}

func TestGetPrimitive(t *testing.T) {
	b := NewContainerBuilder()
	prims := []PackedTriangle{PackTriangle(0, 1, 2), PackTriangle(2, 1, 3), PackTriangle(4, 5, 6)}
	acc := b.AddElements(encodeRecords(t, prims), 4, uint32(len(prims)))
	c := b.Build()

	span, err := resolveSpan[PackedTriangle](c.Accessors, c.BufferViews, NewArena(c.Buffer), acc)
	require.NoError(t, err)

	i0, i1, i2, err := GetPrimitive(span, 1)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{2, 1, 3}, [3]uint32{i0, i1, i2})

	_, _, _, err = GetPrimitive(span, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGetVertexIndex(t *testing.T) {
	b := NewContainerBuilder()
	a16 := b.AddElements(u16bytes(7, 65535, 3), 2, 3)
	a32 := b.AddElements(u32bytes(7, 70000), 4, 2)
	c := b.Build()
	arena := NewArena(c.Buffer)

	v16, err := Resolve(c.Accessors, c.BufferViews, arena, a16)
	require.NoError(t, err)
	v32, err := Resolve(c.Accessors, c.BufferViews, arena, a32)
	require.NoError(t, err)

	tests := []struct {
		name      string
		view      View
		index     uint32
		indexSize uint32
		want      uint32
		wantErr   error
	}{
		{"16-bit first", v16, 0, 2, 7, nil},
		{"16-bit max", v16, 1, 2, 65535, nil},
		{"16-bit last", v16, 2, 2, 3, nil},
		{"16-bit past end", v16, 3, 2, 0, ErrIndexOutOfRange},
		{"32-bit", v32, 1, 4, 70000, nil},
		{"32-bit past end", v32, 2, 4, 0, ErrIndexOutOfRange},
		{"size 3", v32, 0, 3, 0, ErrInvalidIndexSize},
		{"size 1", v16, 0, 1, 0, ErrInvalidIndexSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetVertexIndex(tt.view, tt.index, tt.indexSize)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	arena.Release()
	_, err = GetVertexIndex(v16, 0, 2)
	assert.ErrorIs(t, err, ErrReleased)
}

func meshletSpans(t *testing.T, meshlets []Meshlet, subsets []Subset) (Span[Meshlet], Span[Subset]) {
	t.Helper()
	b := NewContainerBuilder()
	ma := b.AddElements(encodeRecords(t, meshlets), 16, uint32(len(meshlets)))
	sa := b.AddElements(encodeRecords(t, subsets), 8, uint32(len(subsets)))
	c := b.Build()
	arena := NewArena(c.Buffer)

	ms, err := resolveSpan[Meshlet](c.Accessors, c.BufferViews, arena, ma)
	require.NoError(t, err)
	ss, err := resolveSpan[Subset](c.Accessors, c.BufferViews, arena, sa)
	require.NoError(t, err)
	return ms, ss
}

func TestLastMeshletPackCount(t *testing.T) {
	meshlets := []Meshlet{
		{VertCount: 64, PrimCount: 126},
		{VertCount: 32, PrimCount: 63},
		{VertCount: 10, PrimCount: 60},
		{VertCount: 0, PrimCount: 0},
	}
	subsets := []Subset{
		{Offset: 0, Count: 2},
		{Offset: 0, Count: 1},
		{Offset: 2, Count: 1},
		{Offset: 0, Count: 0},
		{Offset: 3, Count: 1},
		{Offset: 3, Count: 2},
	}
	ms, ss := meshletSpans(t, meshlets, subsets)

	tests := []struct {
		name    string
		subset  uint32
		want    uint32
		wantErr error
	}{
		{"half-full last meshlet", 0, 2, nil},
		{"full meshlet", 1, 1, nil},
		{"primitive bound", 2, 2, nil},
		{"empty subset", 3, 0, nil},
		{"degenerate meshlet", 4, 0, nil},
		{"subset past meshlets", 5, 0, ErrIndexOutOfRange},
		{"subset index out of range", 6, 0, ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LastMeshletPackCount(ms, ss, tt.subset, 64, 126)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	empties := []struct {
		name     string
		meshlets []Meshlet
		subsets  []Subset
	}{
		{"no meshlets or subsets", nil, nil},
		{"meshlets without subsets", []Meshlet{{VertCount: 32, PrimCount: 63}}, nil},
		{"subsets without meshlets", nil, []Subset{{Offset: 0, Count: 1}}},
	}
	for _, tt := range empties {
		t.Run(tt.name, func(t *testing.T) {
			ms, ss := meshletSpans(t, tt.meshlets, tt.subsets)
			got, err := LastMeshletPackCount(ms, ss, 0, 64, 126)
			require.NoError(t, err)
			assert.Zero(t, got)
		})
	}
}

func TestMeshPositions(t *testing.T) {
	c := triangleContainer(t)
	m, err := assemble(t, c, 0)
	require.NoError(t, err)

	points, err := m.Positions()
	require.NoError(t, err)
	assert.Equal(t, []mgl32.Vec3{{0, 0, 0}, {2, 0, 0}}, points)
}
